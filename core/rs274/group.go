package rs274

import (
	"fmt"
	"sort"
	"strings"
)

// GroupSpec declares one modal group row of a normalization table. Rows are
// plain data so dialects can add groups or codes without subclassing
// anything.
type GroupSpec struct {
	// Name identifies the group in conflict errors and table listings.
	Name string `json:"name" yaml:"name"`

	// Rank orders the group's command within a normalized block. Lower
	// ranks run first. Ranks must be unique across a table.
	Rank int `json:"rank" yaml:"rank"`

	// Attach names the dual-role letter (F, S or T) folded into this
	// group's command when both appear in a block. Empty for most groups.
	Attach string `json:"attach,omitempty" yaml:"attach,omitempty"`

	// Codes declares member codes with their parameter templates.
	Codes []CodeSpec `json:"codes" yaml:"codes"`
}

// CodeSpec declares member codes of a group in code-set notation, with the
// parameter letters those codes require and accept.
type CodeSpec struct {
	Codes    string `json:"codes" yaml:"codes"`
	Required string `json:"required,omitempty" yaml:"required,omitempty"`
	Optional string `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Group is a compiled modal group.
type Group struct {
	Name   string
	Rank   int
	Attach byte     // 0 when the group attaches nothing
	Codes  []string // member codes in declaration order, families as "Gn.x"
}

// Entry is the compiled table entry for one code.
type Entry struct {
	Code     string
	Group    *Group
	Required []byte
	Optional []byte
}

// Table is a compiled modal group table. Lookup resolves a canonical code to
// its group and parameter template; sub-code families declared with ".x"
// notation match any sub-code of their base.
type Table struct {
	groups      []*Group
	entries     map[string]*Entry
	families    map[string]*Entry
	attach      map[byte][]*Group
	rows        []GroupSpec
	fingerprint string
}

// BuildTable compiles declarative group rows into a Table. Group names and
// ranks must be unique, no code may belong to two groups, attach letters are
// limited to F, S and T, and template letters must be parameter letters.
func BuildTable(rows []GroupSpec) (*Table, error) {
	t := &Table{
		entries:  make(map[string]*Entry),
		families: make(map[string]*Entry),
		attach:   make(map[byte][]*Group),
	}
	names := make(map[string]bool)
	ranks := make(map[int]string)

	for _, row := range rows {
		if row.Name == "" {
			return nil, fmt.Errorf("modal table: group with empty name")
		}
		if names[row.Name] {
			return nil, fmt.Errorf("modal table: group %q declared twice", row.Name)
		}
		names[row.Name] = true
		if prev, taken := ranks[row.Rank]; taken {
			return nil, fmt.Errorf("modal table: groups %q and %q share rank %d", prev, row.Name, row.Rank)
		}
		ranks[row.Rank] = row.Name

		group := &Group{Name: row.Name, Rank: row.Rank}
		switch row.Attach {
		case "":
		case "F", "S", "T":
			group.Attach = row.Attach[0]
			t.attach[group.Attach] = append(t.attach[group.Attach], group)
		default:
			return nil, fmt.Errorf("modal table: group %q attaches %q, only F, S and T are dual-role", row.Name, row.Attach)
		}

		for _, cs := range row.Codes {
			set, err := ParseCodeSet(cs.Codes)
			if err != nil {
				return nil, fmt.Errorf("modal table: group %q: %w", row.Name, err)
			}
			required, err := templateLetters(cs.Required)
			if err != nil {
				return nil, fmt.Errorf("modal table: group %q: required: %w", row.Name, err)
			}
			optional, err := templateLetters(cs.Optional)
			if err != nil {
				return nil, fmt.Errorf("modal table: group %q: optional: %w", row.Name, err)
			}

			for _, code := range set.Codes {
				if prev, taken := t.entries[code]; taken {
					return nil, fmt.Errorf("modal table: code %s in both %q and %q", code, prev.Group.Name, row.Name)
				}
				if group.Attach != 0 && code == string(group.Attach) {
					return nil, fmt.Errorf("modal table: group %q cannot both contain and attach %s", row.Name, code)
				}
				t.entries[code] = &Entry{Code: code, Group: group, Required: required, Optional: optional}
				group.Codes = append(group.Codes, code)
			}
			for _, family := range set.Families {
				if prev, taken := t.families[family]; taken {
					return nil, fmt.Errorf("modal table: family %s.x in both %q and %q", family, prev.Group.Name, row.Name)
				}
				t.families[family] = &Entry{Code: family + ".x", Group: group, Required: required, Optional: optional}
				group.Codes = append(group.Codes, family+".x")
			}
		}
		t.groups = append(t.groups, group)
	}

	sort.SliceStable(t.groups, func(i, j int) bool { return t.groups[i].Rank < t.groups[j].Rank })
	t.rows = append([]GroupSpec(nil), rows...)
	sort.SliceStable(t.rows, func(i, j int) bool { return t.rows[i].Rank < t.rows[j].Rank })
	t.fingerprint = fingerprintRows(t.rows)
	return t, nil
}

// MustTable compiles rows and panics on failure. For use with table literals
// known at compile time.
func MustTable(rows []GroupSpec) *Table {
	t, err := BuildTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves a canonical code to its table entry. Exact matches win;
// otherwise a sub-code falls back to its declared family ("G5.7" resolves
// through the "G5.x" family).
func (t *Table) Lookup(code string) (*Entry, bool) {
	if entry, ok := t.entries[code]; ok {
		return entry, true
	}
	if base, _, found := strings.Cut(code, "."); found {
		if entry, ok := t.families[base]; ok {
			return entry, true
		}
	}
	return nil, false
}

// Groups returns the compiled groups in rank order.
func (t *Table) Groups() []*Group {
	return t.groups
}

// Rows returns the declarative rows the table was compiled from, sorted by
// rank. Policy transforms such as the early dwell move are already applied.
func (t *Table) Rows() []GroupSpec {
	return t.rows
}

// AttachTargets returns the groups that attach the given dual-role letter.
func (t *Table) AttachTargets(letter byte) []*Group {
	return t.attach[letter]
}

// Fingerprint returns a stable digest of the declarative rows the table was
// compiled from. Equal fingerprints mean identical normalization behavior.
func (t *Table) Fingerprint() string {
	return t.fingerprint
}

func fingerprintRows(rows []GroupSpec) string {
	var sb strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&sb, "%s|%d|%s", row.Name, row.Rank, row.Attach)
		for _, cs := range row.Codes {
			fmt.Fprintf(&sb, "|%s;%s;%s", cs.Codes, cs.Required, cs.Optional)
		}
		sb.WriteByte('\n')
	}
	return Blake3Hash([]byte(sb.String()))
}

// templateLetters validates a parameter template string. Command letters
// cannot appear in templates; dual-role values arrive through the group's
// attach column instead.
func templateLetters(s string) ([]byte, error) {
	letters := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := upperLetter(s[i])
		if c == ' ' {
			continue
		}
		if !isLetter(c) {
			return nil, fmt.Errorf("template letter %q is not a letter", string(s[i]))
		}
		if IsCommandLetter(c) {
			return nil, fmt.Errorf("command letter %s cannot be a template parameter", string(c))
		}
		if !containsLetter(letters, c) {
			letters = append(letters, c)
		}
	}
	return letters, nil
}

func containsLetter(letters []byte, c byte) bool {
	for _, l := range letters {
		if l == c {
			return true
		}
	}
	return false
}
