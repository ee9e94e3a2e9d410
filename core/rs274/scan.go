package rs274

import (
	"strconv"
	"strings"
)

// ScanBlock splits one block of RS-274 text into letter tokens. Parenthetical
// comments and semicolon trailing comments are stripped and returned in scan
// order. Whitespace between words is ignored; whitespace between a letter and
// its number is not permitted.
//
// O-word flow control ("o100 call") and bracketed literals ("[1.5]") are
// recognized so they can be rejected with a precise message: neither
// construct binds inside a block.
func ScanBlock(line string) ([]Token, []string, error) {
	var (
		tokens   []Token
		comments []string
	)
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c == ';':
			// Trailing comment runs to end of line.
			if text := strings.TrimSpace(line[i+1:]); text != "" {
				comments = append(comments, text)
			}
			i = len(line)

		case c == '(':
			end := strings.IndexByte(line[i:], ')')
			if end < 0 {
				return nil, nil, NewMalformedToken(line[i:], i, "unterminated comment")
			}
			comments = append(comments, strings.TrimSpace(line[i+1:i+end]))
			i += end + 1

		case c == '[':
			end := scanBracket(line, i)
			if end < 0 {
				return nil, nil, NewMalformedToken(remainderOf(line, i), i, "unterminated bracket")
			}
			return nil, nil, NewMalformedToken(line[i:end], i, "bracket arguments are not bound to any command")

		case c == 'O' || c == 'o':
			end := scanOWord(line, i)
			if end < 0 {
				return nil, nil, NewMalformedToken(remainderOf(line, i), i, "")
			}
			return nil, nil, NewMalformedToken(line[i:end], i, "flow control words are not supported inside a block")

		case isLetter(c):
			tok, next, err := scanWord(line, i)
			if err != nil {
				return nil, nil, err
			}
			tokens = append(tokens, tok)
			i = next

		default:
			return nil, nil, NewMalformedToken(remainderOf(line, i), i, "")
		}
	}
	return tokens, comments, nil
}

// scanWord scans a letter followed by a signed decimal number starting at i.
func scanWord(line string, i int) (Token, int, error) {
	j := i + 1
	if j < len(line) && (line[j] == '-' || line[j] == '+') {
		j++
	}
	digits := false
	for j < len(line) && (isDigit(line[j]) || line[j] == '.') {
		digits = digits || isDigit(line[j])
		j++
	}
	if !digits {
		return Token{}, 0, NewMalformedToken(remainderOf(line, i), i, "letter must be followed by a number")
	}
	text := line[i:j]
	value, err := strconv.ParseFloat(strings.TrimPrefix(text[1:], "+"), 64)
	if err != nil {
		return Token{}, 0, NewMalformedToken(text, i, "invalid number")
	}
	return Token{
		Letter: upperLetter(line[i]),
		Value:  value,
		Text:   text,
		Offset: i,
	}, j, nil
}

// scanBracket returns the index just past the closing bracket of the literal
// starting at i, or -1 if the bracket never closes or holds a non-number.
func scanBracket(line string, i int) int {
	j := i + 1
	if j < len(line) && (line[j] == '-' || line[j] == '+') {
		j++
	}
	digits := false
	for j < len(line) && (isDigit(line[j]) || line[j] == '.') {
		digits = digits || isDigit(line[j])
		j++
	}
	if !digits || j >= len(line) || line[j] != ']' {
		return -1
	}
	return j + 1
}

// scanOWord returns the index just past an O-word flow control construct
// ("o<n> sub|endsub|call") starting at i, or -1 if the text is not one.
func scanOWord(line string, i int) int {
	j := i + 1
	for j < len(line) && isDigit(line[j]) {
		j++
	}
	if j == i+1 {
		return -1
	}
	k := j
	for k < len(line) && (line[k] == ' ' || line[k] == '\t') {
		k++
	}
	if k == j {
		return -1
	}
	for _, word := range []string{"endsub", "sub", "call"} {
		if len(line) >= k+len(word) && strings.EqualFold(line[k:k+len(word)], word) {
			return k + len(word)
		}
	}
	return -1
}

// remainderOf cites the unparseable text from i to the next whitespace.
func remainderOf(line string, i int) string {
	j := i
	for j < len(line) && line[j] != ' ' && line[j] != '\t' {
		j++
	}
	return line[i:j]
}
