// Package rs274 normalizes RS-274 (G-code) blocks into canonically ordered
// command sequences.
//
// An RS-274 block is a single line of machining words such as "M8 G1 Z-0.5
// F5000". The words in a block are an unordered set: controllers execute them
// by function, not by the order they were written. This package makes that
// execution order explicit and machine-checkable.
//
// # Pipeline
//
// Normalization runs five stages over one block:
//
//   - Scan: split the raw line into letter/number tokens, stripping comments
//   - Classify: divide tokens into commands (letters F, G, M, N, S, T) and
//     parameters (every other letter), rejecting duplicates
//   - Conflict check: reject two commands from the same modal group
//   - Sequence: order commands by modal group rank and resolve the dual-role
//     letters S, F and T against their attachment targets
//   - Bind: assign each parameter to the single command that claims it
//
// The result is a Block holding BoundCommand values in canonical execution
// order. Each failure mode has a typed error carrying the offending code,
// letter or source text.
//
// # Modal Groups
//
// Ordering is driven by a declarative table of modal groups. Each group has a
// precedence rank, a set of member codes, and optionally a dual-role letter
// it attaches (the spindle group attaches S, tool change attaches T, motion
// attaches F). Two member codes of one group cannot share a block. The
// built-in table covers the common LinuxCNC-derived dialect; alternative
// tables are plain data, see the dialect package.
//
// # Dual-Role Letters
//
// S, F and T are commands when standalone and parameters when their target
// command is present. "T10" alone selects tool 10 as its own command; in
// "T11 M6" the T value folds into the tool change, yielding the single
// command "M6 T11".
//
// # Example
//
//	block, err := rs274.Normalize("M8 G1 Z-0.5 F5000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, cmd := range block.Commands {
//	    fmt.Println(cmd.String())
//	}
//	// Output:
//	// M8
//	// G1 F5000 Z-0.5
package rs274
