package recovery

import (
	"regexp"
	"strings"
)

// RepairFunc re-serialises a candidate into text that is closer to valid
// JSON. It exists as a named type so tests can wrap or replace the default
// [Repair] implementation on an [Engine].
type RepairFunc func(Candidate) string

// scanState is the repairer's working state during its single left-to-right
// pass. escaped is true for exactly one character following an unescaped
// backslash inside a string; inString toggles only on an unescaped quote.
type scanState struct {
	inString bool
	escaped  bool
	stack    []byte // opened '{' and '[' in order
}

func (st *scanState) push(opener byte) {
	st.stack = append(st.stack, opener)
}

func (st *scanState) pop() byte {
	top := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	return top
}

func (st *scanState) contains(opener byte) bool {
	for _, b := range st.stack {
		if b == opener {
			return true
		}
	}
	return false
}

func closerFor(opener byte) byte {
	if opener == '[' {
		return ']'
	}
	return '}'
}

func openerFor(closer byte) byte {
	if closer == ']' {
		return '['
	}
	return '{'
}

// Lexical cleanup tier, applied to the scanned text as whole-string passes.
// Kept separate from the character scanner so each tier stays independently
// testable. These are lossy toward malformed content: they only ever run on
// text that already failed a strict parse.
var (
	repeatedCommasRe = regexp.MustCompile(`,(?:\s*,)+`)
	trailingCommaRe  = regexp.MustCompile(`,\s*([}\]])`)
	missingValueRe   = regexp.MustCompile(`:\s*([,}\]])`)
	danglingKeyRe    = regexp.MustCompile(`("(?:[^"\\]|\\.)*")\s*:\s*$`)
	commaAtEndRe     = regexp.MustCompile(`,\s*$`)
)

func cleanup(text string) string {
	text = repeatedCommasRe.ReplaceAllString(text, ",")
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = missingValueRe.ReplaceAllString(text, ": null$1")
	text = danglingKeyRe.ReplaceAllString(text, "${1}: null")
	text = commaAtEndRe.ReplaceAllString(text, "")
	return text
}

// Repair re-emits the candidate while fixing string-escaping issues,
// brace/bracket balance, trailing commas and incomplete key/value pairs.
//
// The scanner applies its rules in a fixed precedence order: escape state
// first, then quote toggling, then structural characters. Reordering would
// let escaped quotes toggle string state. A candidate that is already valid
// passes through byte-for-byte except for control-character escaping inside
// strings.
func Repair(c Candidate) string {
	var st scanState
	var out strings.Builder
	out.Grow(len(c.Text) + 8)

	s := c.Text
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case st.escaped:
			out.WriteByte(ch)
			st.escaped = false

		case st.inString && ch == '\\':
			out.WriteByte(ch)
			st.escaped = true

		case ch == '"':
			if !st.inString {
				st.inString = true
				out.WriteByte(ch)
				break
			}
			if terminatesString(s, i+1) {
				st.inString = false
				out.WriteByte(ch)
				break
			}
			// Stray interior quote: best-effort salvage, see the
			// terminatesString heuristic.
			out.WriteString(`\"`)

		case st.inString:
			switch ch {
			case '\n':
				out.WriteString(`\n`)
			case '\t':
				out.WriteString(`\t`)
			case '\r':
				// Dropped: almost always the partner of a \n.
			default:
				out.WriteByte(ch)
			}

		case ch == '{' || ch == '[':
			st.push(ch)
			out.WriteByte(ch)

		case ch == '}' || ch == ']':
			st.closeStructure(&out, ch)

		default:
			out.WriteByte(ch)
		}
	}

	text := out.String()
	if st.inString {
		text += `"`
	}
	text = cleanup(text)

	// Close whatever is still open, innermost first.
	var tail strings.Builder
	for i := len(st.stack) - 1; i >= 0; i-- {
		tail.WriteByte(closerFor(st.stack[i]))
	}
	return text + tail.String()
}

// closeStructure handles a closing '}' or ']' seen outside a string. A
// matching top is popped and emitted as-is. On a mismatch the stack is
// unwound with the correct closers until the matching opener is reached;
// when no matching opener exists anywhere, the closer is treated as a
// single-character typo for the top's closer ('{'+']' means '}', '['+'}'
// means ']'). Orphan closers with an empty stack are dropped silently.
func (st *scanState) closeStructure(out *strings.Builder, closer byte) {
	if len(st.stack) == 0 {
		return
	}
	opener := openerFor(closer)
	if st.stack[len(st.stack)-1] == opener {
		st.pop()
		out.WriteByte(closer)
		return
	}
	if st.contains(opener) {
		for len(st.stack) > 0 {
			top := st.pop()
			out.WriteByte(closerFor(top))
			if top == opener {
				return
			}
		}
		return
	}
	out.WriteByte(closerFor(st.pop()))
}

// terminatesString decides whether a quote seen inside a string really ends
// it: it does when the next non-whitespace character is a structural
// delimiter or the text ends. Anything else is assumed to be an unescaped
// interior quote. This is best-effort salvage, not a correctness guarantee;
// it misfires when a string legitimately ends right before another string
// with no comma between them.
func terminatesString(s string, from int) bool {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
