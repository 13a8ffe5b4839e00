package recovery

import (
	"strings"
	"unicode"
)

// quoteReplacer maps typographic quote variants (curly quotes, primes) to
// their ASCII equivalents. Models writing prose-flavoured JSON frequently
// substitute these for the straight quotes the grammar requires. All other
// characters, including non-ASCII letters, are left untouched.
var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"″", `"`, // double prime
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
	"‚", "'", // single low-9 quotation mark
	"′", "'", // prime
)

// Normalize removes markdown code-fence markers and maps typographic quotes
// to ASCII. It runs once, fully, before boundary location, so subsequent
// indexing sees the final character positions.
func Normalize(text string) string {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return quoteReplacer.Replace(clean)
}

// stripControl drops non-printable control characters, keeping tab, newline
// and carriage return for the repairer to escape rather than delete. Used by
// the aggressive escalation pass only.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
