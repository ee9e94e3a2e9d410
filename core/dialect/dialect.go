// Package dialect describes controller dialects as configuration objects
// layered over the built-in modal table.
//
// A dialect never subclasses anything: it names a base to extend, declares
// new modal groups, appends codes to existing groups, and sets the policy
// flags. The result compiles to the same declarative rows the rs274 package
// normalizes against, so two dialects that resolve to equal rows behave
// identically.
package dialect

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

// Extension appends codes to a group the base dialect already declares.
type Extension struct {
	Group string           `json:"group" yaml:"group"`
	Codes []rs274.CodeSpec `json:"codes" yaml:"codes"`
}

// Dialect is a declarative controller description.
type Dialect struct {
	// Name identifies the dialect in listings and run transcripts.
	Name string `json:"name" yaml:"name"`

	// Extends names the base dialect whose resolved rows seed this one.
	// Empty or "default" selects the built-in table; "none" starts from an
	// empty table.
	Extends string `json:"extends,omitempty" yaml:"extends,omitempty"`

	// Strict rejects codes outside the resolved table instead of routing
	// them into trailing fallback groups.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`

	// EarlyDwell moves G4 into the lowest-ranked group.
	EarlyDwell bool `json:"early_dwell,omitempty" yaml:"early_dwell,omitempty"`

	// Groups declares modal groups this dialect adds.
	Groups []rs274.GroupSpec `json:"groups,omitempty" yaml:"groups,omitempty"`

	// Extend appends codes to groups the base declares.
	Extend []Extension `json:"extend,omitempty" yaml:"extend,omitempty"`
}

// Rows resolves the dialect to declarative table rows: base rows, then added
// groups, then extensions merged into their target groups.
func (d *Dialect) Rows() ([]rs274.GroupSpec, error) {
	var rows []rs274.GroupSpec
	switch d.Extends {
	case "", "default":
		rows = rs274.DefaultRows()
	case "none":
	default:
		base, ok := Builtin(d.Extends)
		if !ok {
			return nil, fmt.Errorf("dialect %s extends unknown dialect %q", d.Name, d.Extends)
		}
		var err error
		rows, err = base.Rows()
		if err != nil {
			return nil, err
		}
	}

	for _, group := range d.Groups {
		copied := group
		copied.Codes = append([]rs274.CodeSpec(nil), group.Codes...)
		rows = append(rows, copied)
	}

	for _, ext := range d.Extend {
		found := false
		for i := range rows {
			if rows[i].Name == ext.Group {
				rows[i].Codes = append(append([]rs274.CodeSpec(nil), rows[i].Codes...), ext.Codes...)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("dialect %s extends unknown group %q", d.Name, ext.Group)
		}
	}
	return rows, nil
}

// Options resolves the dialect into normalizer options.
func (d *Dialect) Options() (rs274.Options, error) {
	rows, err := d.Rows()
	if err != nil {
		return rs274.Options{}, err
	}
	return rs274.Options{Rows: rows, Strict: d.Strict, EarlyDwell: d.EarlyDwell}, nil
}

// Normalizer compiles the dialect into a ready normalizer.
func (d *Dialect) Normalizer() (*rs274.Normalizer, error) {
	opts, err := d.Options()
	if err != nil {
		return nil, err
	}
	return rs274.NewNormalizer(opts)
}

// Table compiles the dialect's effective modal table, with the policy flags
// applied.
func (d *Dialect) Table() (*rs274.Table, error) {
	n, err := d.Normalizer()
	if err != nil {
		return nil, err
	}
	return n.Table(), nil
}

// Validate reports everything wrong with the dialect. A valid dialect has a
// name and resolves to a compilable table.
func (d *Dialect) Validate() []error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, fmt.Errorf("dialect has no name"))
	}
	if _, err := d.Normalizer(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Builtin returns a fresh copy of a built-in dialect by name.
func Builtin(name string) (*Dialect, bool) {
	build, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

// Names lists the built-in dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
