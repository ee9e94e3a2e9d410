package rs274

import (
	"sort"
	"strconv"
	"strings"
)

// BoundCommand is one executable command with its bound parameters.
type BoundCommand struct {
	// Code is the canonical command identity, e.g. "G1" or "M30". A bare
	// letter ("S", "F", "T") identifies a standalone dual-role command
	// whose number lives in Value.
	Code string `json:"code"`

	// Value is the number of a standalone dual-role command ("T10" keeps
	// 10 here). Nil for every other command.
	Value *float64 `json:"value,omitempty"`

	// Params maps bound parameter letters to their values.
	Params map[string]float64 `json:"params,omitempty"`
}

// String serializes the command canonically: the code (with its value for
// standalone dual-role commands) followed by parameters in letter order.
// Numbers render in shortest round-trip decimal form, never exponent
// notation.
func (c *BoundCommand) String() string {
	var sb strings.Builder
	sb.WriteString(c.Code)
	if c.Value != nil {
		sb.WriteString(FormatNumber(*c.Value))
	}
	letters := make([]string, 0, len(c.Params))
	for l := range c.Params {
		letters = append(letters, l)
	}
	sort.Strings(letters)
	for _, l := range letters {
		sb.WriteByte(' ')
		sb.WriteString(l)
		sb.WriteString(FormatNumber(c.Params[l]))
	}
	return sb.String()
}

// Param returns the bound value for a parameter letter.
func (c *BoundCommand) Param(letter string) (float64, bool) {
	value, ok := c.Params[letter]
	return value, ok
}

// FormatNumber renders an RS-274 number: shortest decimal form that round
// trips, with no exponent and no trailing ".0".
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
