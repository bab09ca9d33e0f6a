package bleu

import (
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	unescaper = strings.NewReplacer(
		"<skipped>", "",
		"-\n", "",
		"\n", " ",
		"&quot;", `"`,
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
	)

	// Applied in order, as in the mteval-v13a reference script.
	rules13a = []struct {
		re   *regexp2.Regexp
		repl string
	}{
		{regexp2.MustCompile(`([\{-\~\[-\x60 -\&\(-\+\:-\@\/])`, regexp2.None), " $1 "},
		{regexp2.MustCompile(`([^0-9])([\.,])`, regexp2.None), "$1 $2 "},
		{regexp2.MustCompile(`([\.,])([^0-9])`, regexp2.None), " $1 $2"},
		{regexp2.MustCompile(`([0-9])(-)`, regexp2.None), "$1 $2 "},
	}
)

// Tokenize13a splits text the way the mteval-v13a script does: punctuation
// and symbols become separate tokens, except periods and commas inside
// numbers and dashes that do not follow a digit.
func Tokenize13a(text string) []string {
	text = unescaper.Replace(text)
	padded := " " + text + " "
	for _, rule := range rules13a {
		out, err := rule.re.Replace(padded, rule.repl, -1, -1)
		if err != nil {
			// Only a match timeout can fail and none is configured.
			panic(err)
		}
		padded = out
	}
	return strings.Fields(padded)
}
