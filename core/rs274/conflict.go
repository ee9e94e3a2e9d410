package rs274

// unknownRankBase orders fallback groups for unknown codes after every rank
// a table could plausibly declare.
const unknownRankBase = 1 << 20

// groupedCommand pairs a classified command with its resolved modal group.
// Unknown codes under the lenient policy carry a synthesized single-member
// group and a nil entry (they claim no parameters).
type groupedCommand struct {
	cmd   CommandToken
	entry *Entry
	group *Group
}

// resolveGroups looks up each command's modal group. Unknown codes fail under
// the strict policy; otherwise each distinct unknown code gets its own
// fallback group ranked after all known groups in encounter order.
func (n *Normalizer) resolveGroups(pb *ParsedBlock) ([]groupedCommand, error) {
	cmds := make([]groupedCommand, 0, len(pb.Commands))
	for i, cmd := range pb.Commands {
		entry, ok := n.table.Lookup(cmd.Code)
		if !ok {
			if n.strict {
				return nil, &UnknownCodeError{Code: cmd.Code}
			}
			cmds = append(cmds, groupedCommand{
				cmd: cmd,
				group: &Group{
					Name:  "unknown " + cmd.Code,
					Rank:  unknownRankBase + i,
					Codes: []string{cmd.Code},
				},
			})
			continue
		}
		cmds = append(cmds, groupedCommand{cmd: cmd, entry: entry, group: entry.Group})
	}
	return cmds, nil
}

// checkConflicts rejects blocks holding two distinct commands from one modal
// group. Identical duplicates were already rejected during classification.
func checkConflicts(cmds []groupedCommand) error {
	byGroup := make(map[*Group][]string)
	for _, gc := range cmds {
		byGroup[gc.group] = append(byGroup[gc.group], gc.cmd.Code)
	}
	for _, gc := range cmds {
		if codes := byGroup[gc.group]; len(codes) > 1 {
			return &ModalGroupConflictError{Group: gc.group.Name, Codes: codes}
		}
	}
	return nil
}
