// Package tokenizer turns sentences into token ids and back.
//
// Every tokenizer in this package shares one special-token layout:
//
//	[PAD] = 0   padding, ignored by masks and the loss
//	[UNK] = 1   symbols outside the vocabulary
//	[SOS] = 2   first id of every encoded sentence
//	[EOS] = 3   last id of every encoded sentence
//
// Implementations:
//   - BPE: subword vocabulary learned from the training corpus (TrainBPE),
//     stored as a HuggingFace tokenizer.json (SaveHuggingFace, LoadHuggingFace)
//   - TikToken: pretrained OpenAI encodings via pkoukk/tiktoken-go, with ids
//     shifted past the special tokens
//
// Example usage:
//
//	tok, err := tokenizer.TrainBPE(slices.Values(sentences), tokenizer.TrainerConfig{
//	    VocabSize:    12000,
//	    MinFrequency: 3,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ids, _ := tok.Encode("Hello, world!")  // [SOS] ... [EOS]
//	text, _ := tok.Decode(ids, true)       // "Hello, world!"
package tokenizer
