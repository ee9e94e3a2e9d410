package rs274

// commandLetters are the letters that introduce commands. Every other letter
// scanned from a block introduces a parameter.
const commandLetters = "FGMNST"

// Token is one letter/number word scanned from a block.
type Token struct {
	Letter byte    // upper-cased word letter
	Value  float64 // parsed numeric value
	Text   string  // raw source text as written, e.g. "G01" or "z-.5"
	Offset int     // byte offset of the letter within the block
}

// IsCommandLetter reports whether letter introduces a command word.
func IsCommandLetter(letter byte) bool {
	letter = upperLetter(letter)
	for i := 0; i < len(commandLetters); i++ {
		if commandLetters[i] == letter {
			return true
		}
	}
	return false
}

func upperLetter(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
