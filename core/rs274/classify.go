package rs274

import "strings"

// CommandToken is one classified command occurrence in encounter order.
type CommandToken struct {
	Code   string  // canonical code identity: "G1", "M30", or a bare letter "T"
	Letter byte    // command letter
	Value  float64 // numeric value as written (the code number, or the letter's value)
	Offset int     // source offset, for error reporting
}

// ParsedBlock is the classified content of one block before ordering.
type ParsedBlock struct {
	Commands []CommandToken     // commands in encounter order
	Params   map[string]float64 // parameter letter to value
	Comments []string           // stripped comments in scan order
}

// Classify divides scanned tokens into commands and parameters.
//
// Letters F, G, M, N, S and T introduce commands; every other letter is a
// parameter. G and M codes take their number into the code identity with
// canonical spelling ("G01" becomes "G1", sub-codes like "G38.2" are
// preserved); the bare-letter commands keep the number as their value. A
// repeated parameter letter or a repeated command code fails.
func Classify(tokens []Token, comments []string) (*ParsedBlock, error) {
	pb := &ParsedBlock{
		Params:   make(map[string]float64),
		Comments: comments,
	}
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if !IsCommandLetter(tok.Letter) {
			letter := string(tok.Letter)
			if _, dup := pb.Params[letter]; dup {
				return nil, &DuplicateParameterError{Letter: letter}
			}
			pb.Params[letter] = tok.Value
			continue
		}

		code := string(tok.Letter)
		if tok.Letter == 'G' || tok.Letter == 'M' {
			number, err := canonicalNumber(tok)
			if err != nil {
				return nil, err
			}
			code += number
		}
		if seen[code] {
			return nil, &DuplicateCommandError{Code: code}
		}
		seen[code] = true
		pb.Commands = append(pb.Commands, CommandToken{
			Code:   code,
			Letter: tok.Letter,
			Value:  tok.Value,
			Offset: tok.Offset,
		})
	}
	return pb, nil
}

// canonicalNumber renders a G/M code number canonically from the raw source
// digits: no sign, no leading zeros on the integer part, no trailing zeros on
// the sub-code part. Working on the source text keeps sub-code identities
// like "G38.2" exact.
func canonicalNumber(tok Token) (string, error) {
	raw := strings.TrimPrefix(tok.Text[1:], "+")
	if strings.HasPrefix(raw, "-") {
		return "", NewMalformedToken(tok.Text, tok.Offset, "codes cannot be negative")
	}

	intPart, subPart, _ := strings.Cut(raw, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	subPart = strings.TrimRight(subPart, "0")
	if subPart == "" {
		return intPart, nil
	}
	return intPart + "." + subPart, nil
}
