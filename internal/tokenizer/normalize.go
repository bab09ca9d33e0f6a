package tokenizer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
)

// metaspace marks a piece that was preceded by a space, so Decode can put
// the space back.
const metaspace = "▁"

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"’", "'",
)

// pieceRegexp matches a run of word characters or a single other
// non-space symbol, each optionally led by one space. \w is Unicode aware.
var pieceRegexp = regexp2.MustCompile(` ?\w+| ?[^\w\s]`, regexp2.None)

// Normalize puts text in the canonical form every tokenizer sees:
// NFC composition, straight quotes, single spaces, no surrounding space.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = quoteReplacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// PreTokenize splits normalized text into pieces on whitespace and around
// punctuation. A piece preceded by a space starts with the metaspace mark.
func PreTokenize(text string) ([]string, error) {
	var pieces []string
	m, err := pieceRegexp.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = pieceRegexp.FindNextMatch(m) {
		piece := m.String()
		if strings.HasPrefix(piece, " ") {
			piece = metaspace + piece[1:]
		}
		pieces = append(pieces, piece)
	}
	if err != nil {
		return nil, fmt.Errorf("pre-tokenize: %w", err)
	}
	return pieces, nil
}

// joinPieces reverses PreTokenize on decoded token strings.
func joinPieces(pieces []string) string {
	return strings.ReplaceAll(strings.Join(pieces, ""), metaspace, " ")
}
