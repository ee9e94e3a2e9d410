package rs274

import "sort"

// sequencedBlock is the outcome of ordering and dual-role resolution: the
// surviving commands in execution order, the recorded line number, and the
// dual-role values to fold into their target commands during binding.
type sequencedBlock struct {
	ordered []groupedCommand
	line    *float64
	attach  map[string]map[byte]float64 // target code -> letter -> value
}

// sequence orders commands by modal group rank and resolves the dual-role
// letters.
//
// A line number is recorded as provenance and dropped; it is never emitted
// as a command. A standalone S, F or T whose attachment target group has a
// member in the block folds its value into that member and disappears as a
// command; with no target present it stays standalone at its own rank. Two
// present targets for one letter cannot be told apart, which fails the same
// way a doubly-claimed parameter does.
func (n *Normalizer) sequence(cmds []groupedCommand) (*sequencedBlock, error) {
	seq := &sequencedBlock{
		attach: make(map[string]map[byte]float64),
	}

	dropped := make(map[int]bool)
	for i, gc := range cmds {
		switch gc.cmd.Code {
		case "N":
			value := gc.cmd.Value
			seq.line = &value
			dropped[i] = true

		case "F", "S", "T":
			letter := gc.cmd.Letter
			targets := n.table.AttachTargets(letter)
			if len(targets) == 0 {
				continue
			}
			var claimants []groupedCommand
			for j, oc := range cmds {
				if j == i {
					continue
				}
				for _, target := range targets {
					if oc.group == target {
						claimants = append(claimants, oc)
					}
				}
			}
			switch len(claimants) {
			case 0:
				// Stays a standalone command at its own rank.
			case 1:
				target := claimants[0].cmd.Code
				if seq.attach[target] == nil {
					seq.attach[target] = make(map[byte]float64)
				}
				seq.attach[target][letter] = gc.cmd.Value
				dropped[i] = true
			default:
				codes := make([]string, len(claimants))
				for j, c := range claimants {
					codes[j] = c.cmd.Code
				}
				return nil, &AmbiguousParameterError{Letter: string(letter), Codes: codes}
			}
		}
	}

	for i, gc := range cmds {
		if !dropped[i] {
			seq.ordered = append(seq.ordered, gc)
		}
	}
	sort.SliceStable(seq.ordered, func(i, j int) bool {
		return seq.ordered[i].group.Rank < seq.ordered[j].group.Rank
	})
	return seq, nil
}
