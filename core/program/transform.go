package program

import (
	"fmt"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

// Transform rewrites a normalized program in place.
type Transform func(*Program) error

// Pipeline applies transforms in order, stopping at the first failure.
func Pipeline(transforms ...Transform) Transform {
	return func(p *Program) error {
		for _, t := range transforms {
			if t == nil {
				continue
			}
			if err := t(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// Apply runs a transform over the program.
func (p *Program) Apply(transforms ...Transform) error {
	return Pipeline(transforms...)(p)
}

// RemoveLineNumbers drops the recorded N-word provenance from every block.
func RemoveLineNumbers() Transform {
	return func(p *Program) error {
		for _, b := range p.Blocks {
			b.LineNumber = nil
		}
		return nil
	}
}

// RemoveCodes deletes every command matched by the given code-set notations,
// along with the parameters bound to it. Blocks left with nothing are
// dropped from the program.
func RemoveCodes(patterns ...string) Transform {
	sets := make([]*rs274.CodeSet, 0, len(patterns))
	var parseErr error
	for _, pat := range patterns {
		set, err := rs274.ParseCodeSet(pat)
		if err != nil {
			parseErr = fmt.Errorf("remove codes: %w", err)
			break
		}
		sets = append(sets, set)
	}

	matches := func(code string) bool {
		for _, set := range sets {
			if set.Matches(code) {
				return true
			}
		}
		return false
	}

	return func(p *Program) error {
		if parseErr != nil {
			return parseErr
		}
		kept := p.Blocks[:0]
		for _, b := range p.Blocks {
			cmds := b.Commands[:0]
			for _, cmd := range b.Commands {
				if !matches(cmd.Code) {
					cmds = append(cmds, cmd)
				}
			}
			b.Commands = cmds
			if len(b.Commands) == 0 && len(b.Comments) == 0 && b.LineNumber == nil {
				continue
			}
			kept = append(kept, b)
		}
		p.Blocks = kept
		return nil
	}
}
