package rs274

import "sort"

// bind assigns every block parameter to the single ordered command claiming
// its letter, folds attached dual-role values into their targets, and
// materializes the final command sequence.
//
// Required letters are checked per command in execution order. After claims
// resolve, a letter with two claimants is ambiguous and a letter with none
// is unconsumed; binding never invents a value for an absent letter.
func bind(seq *sequencedBlock, params map[string]float64) ([]BoundCommand, error) {
	claims := make(map[string][]int)
	for i, gc := range seq.ordered {
		if gc.entry == nil {
			continue
		}
		for _, letter := range gc.entry.Required {
			l := string(letter)
			if _, present := params[l]; !present {
				return nil, &MissingParameterError{Code: gc.cmd.Code, Letter: l}
			}
			claims[l] = append(claims[l], i)
		}
		for _, letter := range gc.entry.Optional {
			l := string(letter)
			if _, present := params[l]; present {
				claims[l] = append(claims[l], i)
			}
		}
	}

	letters := make([]string, 0, len(params))
	for l := range params {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	bound := make([]map[string]float64, len(seq.ordered))
	var orphans []string
	for _, l := range letters {
		claimants := claims[l]
		switch len(claimants) {
		case 0:
			orphans = append(orphans, l)
		case 1:
			i := claimants[0]
			if bound[i] == nil {
				bound[i] = make(map[string]float64)
			}
			bound[i][l] = params[l]
		default:
			codes := make([]string, len(claimants))
			for j, i := range claimants {
				codes[j] = seq.ordered[i].cmd.Code
			}
			return nil, &AmbiguousParameterError{Letter: l, Codes: codes}
		}
	}
	if len(orphans) > 0 {
		return nil, &UnconsumedParameterError{Letters: orphans}
	}

	commands := make([]BoundCommand, len(seq.ordered))
	for i, gc := range seq.ordered {
		cmd := BoundCommand{Code: gc.cmd.Code, Params: bound[i]}
		if len(cmd.Code) == 1 {
			value := gc.cmd.Value
			cmd.Value = &value
		}
		for letter, value := range seq.attach[gc.cmd.Code] {
			if cmd.Params == nil {
				cmd.Params = make(map[string]float64)
			}
			cmd.Params[string(letter)] = value
		}
		commands[i] = cmd
	}
	return commands, nil
}
