// Package serialization stores named tensors in a checksummed binary
// container, used for trained models and training checkpoints.
//
//	Layout:
//	  0x00  [4 bytes: magic "S2SM"]
//	  0x04  [4 bytes: format version (uint32 LE)]
//	  0x08  [4 bytes: flags (uint32 LE)]
//	  0x0C  [4 bytes: reserved]
//	  0x10  [8 bytes: header size (uint64 LE)]
//	  0x18  [8 bytes: data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of header JSON followed by data]
//	  0x40  [header: JSON]
//	        [padding to a 64-byte boundary]
//	        [tensor data: raw little-endian bytes]
//
// Example:
//
//	err := serialization.Save("model.s2s", model.StateDict(), serialization.Header{
//	    Kind:     serialization.KindModel,
//	    Metadata: map[string]string{"model_config": string(cfgJSON)},
//	})
//
//	state, header, err := serialization.Load("model.s2s", tensor.CPU)
//	if err != nil {
//	    return err
//	}
//	err = model.LoadStateDict(state)
package serialization
