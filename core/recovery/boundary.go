package recovery

import "strings"

// Candidate is the substring of model output believed to contain the JSON
// document, delimited by the first '{' and its depth-matched closer. When
// nesting never returns to zero before end-of-input the candidate extends to
// the end of the text and is marked unterminated; the repairer is responsible
// for closing it.
type Candidate struct {
	Text         string
	Unterminated bool
}

// Locate finds the JSON object boundary inside arbitrary surrounding text.
// It scans forward from the first '{', tracking nesting depth across both
// {} and [] while suppressing depth changes inside string literals.
//
// Failure is asymmetric on purpose: a missing opening brace means the model
// produced no structured attempt at all and returns [ErrNoObject], while a
// missing closing brace is a common, recoverable truncation.
func Locate(text string) (Candidate, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Candidate{}, ErrNoObject
	}

	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// String content never affects depth.
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return Candidate{Text: text[start : i+1]}, nil
			}
		}
	}

	return Candidate{Text: text[start:], Unterminated: true}, nil
}
