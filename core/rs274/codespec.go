package rs274

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// CodeSet is the expansion of one code-set notation string. Notation covers
// a single code ("G1"), a bare dual-role letter ("T"), an inclusive integer
// range ("G80-G85"), and a sub-code family ("G5.x", which matches G5 and
// every G5.<n>).
type CodeSet struct {
	Codes    []string // concrete canonical codes in declaration order
	Families []string // family prefixes matching any sub-code, e.g. "G5"
}

// codeSetGrammar is the participle grammar for code-set notation.
// Examples: "T", "G1", "G38.2", "G80-G85", "G5.x"
//
//nolint:govet // participle grammar tags are not standard struct tags
type codeSetGrammar struct {
	First codeAtom  `@@`
	Last  *codeAtom `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type codeAtom struct {
	Letter string   `@Letter`
	Number *int     `@Int?`
	Sub    *subCode `( "." @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type subCode struct {
	Wild   bool   `  @Wild`
	Digits string `| @Int`
}

// codeLexer defines the lexer for code-set notation.
// Note: the family marker is lowercase "x" so it cannot collide with a code
// letter, which must be uppercase.
var codeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Wild", Pattern: `x`},
	{Name: "Letter", Pattern: `[A-Z]`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[.\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var codeSetParser = participle.MustBuild[codeSetGrammar](
	participle.Lexer(codeLexer),
	participle.Elide("Whitespace"),
)

// ParseCodeSet parses and expands one code-set notation string.
func ParseCodeSet(s string) (*CodeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty code set")
	}

	parsed, err := codeSetParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid code set %q: %w", s, err)
	}

	first := parsed.First
	if parsed.Last == nil {
		return expandAtom(s, first)
	}

	// Inclusive range: both ends must be whole codes of the same letter.
	last := *parsed.Last
	switch {
	case first.Letter != last.Letter:
		return nil, fmt.Errorf("invalid code set %q: range endpoints use different letters", s)
	case first.Number == nil || last.Number == nil:
		return nil, fmt.Errorf("invalid code set %q: range endpoints need numbers", s)
	case first.Sub != nil || last.Sub != nil:
		return nil, fmt.Errorf("invalid code set %q: ranges cannot carry sub-codes", s)
	case *last.Number < *first.Number:
		return nil, fmt.Errorf("invalid code set %q: descending range", s)
	}

	set := &CodeSet{}
	for n := *first.Number; n <= *last.Number; n++ {
		set.Codes = append(set.Codes, first.Letter+strconv.Itoa(n))
	}
	return set, nil
}

func expandAtom(s string, atom codeAtom) (*CodeSet, error) {
	if atom.Number == nil {
		if atom.Sub != nil {
			return nil, fmt.Errorf("invalid code set %q: bare letter cannot carry a sub-code", s)
		}
		if !IsCommandLetter(atom.Letter[0]) {
			return nil, fmt.Errorf("invalid code set %q: %s is not a command letter", s, atom.Letter)
		}
		return &CodeSet{Codes: []string{atom.Letter}}, nil
	}

	base := atom.Letter + strconv.Itoa(*atom.Number)
	if atom.Sub == nil {
		return &CodeSet{Codes: []string{base}}, nil
	}
	if atom.Sub.Wild {
		return &CodeSet{Codes: []string{base}, Families: []string{base}}, nil
	}
	sub := strings.TrimRight(atom.Sub.Digits, "0")
	if sub == "" {
		return &CodeSet{Codes: []string{base}}, nil
	}
	return &CodeSet{Codes: []string{base + "." + sub}}, nil
}

// Matches reports whether a canonical code belongs to the set.
func (s *CodeSet) Matches(code string) bool {
	for _, c := range s.Codes {
		if c == code {
			return true
		}
	}
	if len(s.Families) > 0 {
		if base, _, ok := strings.Cut(code, "."); ok {
			for _, f := range s.Families {
				if f == base {
					return true
				}
			}
		}
	}
	return false
}

// MustCodeSet parses code-set notation and panics on failure. For use with
// table literals known at compile time.
func MustCodeSet(s string) *CodeSet {
	set, err := ParseCodeSet(s)
	if err != nil {
		panic(err)
	}
	return set
}

// ExpandCodes returns the concrete codes of one code-set notation string,
// with families rendered as "<code>.x".
func ExpandCodes(s string) ([]string, error) {
	set, err := ParseCodeSet(s)
	if err != nil {
		return nil, err
	}
	out := append([]string(nil), set.Codes...)
	for _, family := range set.Families {
		out = append(out, family+".x")
	}
	return out, nil
}
