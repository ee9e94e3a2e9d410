package rs274

import "strings"

// Options configures a Normalizer.
type Options struct {
	// Rows declares the modal group table. Nil selects the built-in
	// default table.
	Rows []GroupSpec

	// Strict fails normalization with an UnknownCodeError on codes
	// outside the table. The lenient default routes unknown codes into
	// single-member fallback groups ordered after every known group, in
	// encounter order.
	Strict bool

	// EarlyDwell moves the G4 declaration into the lowest-ranked group of
	// the table, for controllers on which an in-block dwell runs before
	// everything else rather than after motion.
	EarlyDwell bool
}

// Normalizer normalizes RS-274 blocks against one compiled modal table.
// A Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	table  *Table
	strict bool
}

// NewNormalizer compiles the table selected by opts.
func NewNormalizer(opts Options) (*Normalizer, error) {
	rows := opts.Rows
	if rows == nil {
		rows = DefaultRows()
	}
	if opts.EarlyDwell {
		rows = moveDwellEarly(rows)
	}
	table, err := BuildTable(rows)
	if err != nil {
		return nil, err
	}
	return &Normalizer{table: table, strict: opts.Strict}, nil
}

// MustNormalizer compiles opts and panics on failure. For use with table
// literals known at compile time.
func MustNormalizer(opts Options) *Normalizer {
	n, err := NewNormalizer(opts)
	if err != nil {
		panic(err)
	}
	return n
}

// Table returns the compiled modal table the normalizer runs against.
func (n *Normalizer) Table() *Table {
	return n.table
}

// Strict reports whether unknown codes fail instead of falling back.
func (n *Normalizer) Strict() bool {
	return n.strict
}

// Block is the result of normalizing one block: its commands in canonical
// execution order plus the provenance the block carried.
type Block struct {
	// Commands holds the bound commands in execution order.
	Commands []BoundCommand `json:"commands"`

	// LineNumber records the block's N word. N is informational and never
	// emitted as a command.
	LineNumber *float64 `json:"line_number,omitempty"`

	// Comments holds stripped comment text in scan order.
	Comments []string `json:"comments,omitempty"`

	// Source is the raw block text as submitted.
	Source string `json:"source,omitempty"`
}

// String serializes the block's commands canonically, space separated.
// Re-normalizing the result yields an equal command sequence.
func (b *Block) String() string {
	parts := make([]string, len(b.Commands))
	for i := range b.Commands {
		parts[i] = b.Commands[i].String()
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the block normalized to no commands, as a blank or
// comment-only line does.
func (b *Block) Empty() bool {
	return len(b.Commands) == 0
}

// NormalizeBlock normalizes one block of RS-274 text.
//
// The pipeline runs scan, classify, conflict check, sequence and bind in
// order; the first failing stage's typed error is returned. The input is a
// single block: no modal state is carried between calls.
func (n *Normalizer) NormalizeBlock(line string) (*Block, error) {
	tokens, comments, err := ScanBlock(line)
	if err != nil {
		return nil, err
	}
	pb, err := Classify(tokens, comments)
	if err != nil {
		return nil, err
	}
	grouped, err := n.resolveGroups(pb)
	if err != nil {
		return nil, err
	}
	if err := checkConflicts(grouped); err != nil {
		return nil, err
	}
	seq, err := n.sequence(grouped)
	if err != nil {
		return nil, err
	}
	commands, err := bind(seq, pb.Params)
	if err != nil {
		return nil, err
	}
	return &Block{
		Commands:   commands,
		LineNumber: seq.line,
		Comments:   pb.Comments,
		Source:     line,
	}, nil
}

// defaultNormalizer backs the package-level Normalize.
var defaultNormalizer = MustNormalizer(Options{})

// Normalize normalizes one block against the built-in default table with the
// lenient unknown-code policy.
func Normalize(line string) (*Block, error) {
	return defaultNormalizer.NormalizeBlock(line)
}

// moveDwellEarly relocates the G4 declaration into the lowest-ranked group
// that is not the line number row, dropping the dwell row if it empties. The
// input rows are not modified.
func moveDwellEarly(rows []GroupSpec) []GroupSpec {
	var dwell []CodeSpec
	out := make([]GroupSpec, 0, len(rows))
	for _, row := range rows {
		kept := row
		kept.Codes = nil
		for _, cs := range row.Codes {
			if set, err := ParseCodeSet(cs.Codes); err == nil &&
				len(set.Families) == 0 && len(set.Codes) == 1 && set.Codes[0] == "G4" {
				dwell = append(dwell, cs)
				continue
			}
			kept.Codes = append(kept.Codes, cs)
		}
		if len(kept.Codes) > 0 {
			out = append(out, kept)
		}
	}
	if len(dwell) == 0 {
		return out
	}

	target := -1
	for i, row := range out {
		if rowHasCode(row, "N") {
			continue
		}
		if target < 0 || row.Rank < out[target].Rank {
			target = i
		}
	}
	if target < 0 {
		return rows
	}
	merged := out[target]
	merged.Codes = append(append([]CodeSpec(nil), merged.Codes...), dwell...)
	out[target] = merged
	return out
}

func rowHasCode(row GroupSpec, code string) bool {
	for _, cs := range row.Codes {
		set, err := ParseCodeSet(cs.Codes)
		if err != nil {
			continue
		}
		for _, c := range set.Codes {
			if c == code {
				return true
			}
		}
	}
	return false
}
