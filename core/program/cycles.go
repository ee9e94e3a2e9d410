package program

import (
	"fmt"
	"math"
	"strings"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

// CycleError reports a canned cycle that cannot be expanded into plain
// moves.
type CycleError struct {
	Code    string   // the cycle command, e.g. "G83"
	Source  string   // source text of the failing block
	Missing []string // parameter letters with no explicit or sticky value
	Reason  string   // set when the failure is not a missing parameter
}

func (e *CycleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot expand %s (%q): %s", e.Code, e.Source, e.Reason)
	}
	return fmt.Sprintf("cannot expand %s (%q): no value for %s",
		e.Code, e.Source, strings.Join(e.Missing, ", "))
}

// ExpandDrillCycles replaces G81, G82 and G83 canned cycles with the plain
// G0/G1/G4 moves they stand for, so the output runs on controllers without
// canned cycle support.
//
// Cycle parameters are sticky across blocks the way controllers treat them:
// a later cycle line reuses the R plane, peck depth Q, dwell P and hole
// bottom Z of an earlier one unless it overrides them. The Z word of a cycle
// command is the hole bottom; the current Z height is tracked from ordinary
// motion so the expansion can pre-position above the retract plane and honor
// G98. G98 returns to the starting height or the R plane, whichever is
// higher; G99 returns to the R plane. G80 clears the sticky hole bottom. L
// repeat counts are ignored. Other cycles (G73, G76, G84, G85, G89) pass
// through unchanged.
//
// Each expanded block gains a comment recording the cycle command it
// replaced.
func ExpandDrillCycles() Transform {
	return func(p *Program) error {
		exp := newCycleExpander()
		for _, b := range p.Blocks {
			if err := exp.expandBlock(b); err != nil {
				return err
			}
		}
		return nil
	}
}

// cycleExpander carries the sticky drilling state between blocks. Values are
// NaN until a command supplies them.
type cycleExpander struct {
	retract string  // "G98" or "G99"; empty behaves as G98
	x, y, z float64 // current position
	depth   float64 // hole bottom, the Z word of a cycle command
	r, q, p float64 // retract plane, peck increment, dwell seconds
}

func newCycleExpander() *cycleExpander {
	nan := math.NaN()
	return &cycleExpander{x: nan, y: nan, z: nan, depth: nan, r: nan, q: nan, p: nan}
}

func isDrillCycle(code string) bool {
	switch code {
	case "G81", "G82", "G83":
		return true
	}
	return false
}

func (e *cycleExpander) expandBlock(b *rs274.Block) error {
	out := make([]rs274.BoundCommand, 0, len(b.Commands))
	for i := range b.Commands {
		cmd := &b.Commands[i]
		e.absorb(cmd)
		switch {
		case cmd.Code == "G98" || cmd.Code == "G99":
			e.retract = cmd.Code
			out = append(out, *cmd)
		case cmd.Code == "G80":
			e.depth = math.NaN()
			out = append(out, *cmd)
		case isDrillCycle(cmd.Code):
			moves, err := e.expand(cmd, b.Source)
			if err != nil {
				return err
			}
			b.Comments = append(b.Comments, cmd.String())
			out = append(out, moves...)
		default:
			out = append(out, *cmd)
		}
	}
	b.Commands = out
	return nil
}

// absorb folds a command's parameters into the sticky state. Any command
// moves the tracked position; only cycle commands contribute R, Q, P and the
// hole bottom.
func (e *cycleExpander) absorb(cmd *rs274.BoundCommand) {
	cycle := isDrillCycle(cmd.Code)
	for letter, value := range cmd.Params {
		switch letter {
		case "X":
			e.x = value
		case "Y":
			e.y = value
		case "Z":
			if cycle {
				e.depth = value
			} else {
				e.z = value
			}
		}
		if !cycle {
			continue
		}
		switch letter {
		case "R":
			e.r = value
		case "Q":
			e.q = value
		case "P":
			e.p = value
		}
	}
}

func (e *cycleExpander) expand(cmd *rs274.BoundCommand, source string) ([]rs274.BoundCommand, error) {
	var missing []string
	need := func(letter string, v float64) {
		if !math.IsNaN(v) {
			return
		}
		for _, m := range missing {
			if m == letter {
				return
			}
		}
		missing = append(missing, letter)
	}
	need("X", e.x)
	need("Y", e.y)
	need("Z", e.z)
	need("Z", e.depth)
	need("R", e.r)
	if cmd.Code == "G83" {
		need("Q", e.q)
	}
	if len(missing) > 0 {
		return nil, &CycleError{Code: cmd.Code, Source: source, Missing: missing}
	}
	if cmd.Code == "G83" && e.q <= 0 {
		return nil, &CycleError{Code: cmd.Code, Source: source, Reason: "Q must be positive"}
	}

	var moves []rs274.BoundCommand
	emit := func(code string, params map[string]float64) {
		moves = append(moves, rs274.BoundCommand{Code: code, Params: params})
	}

	// A feed rate bound to the cycle command moves onto the first drilling
	// move; afterwards it is modal.
	feed, hasFeed := cmd.Param("F")
	drill := func(depth float64) {
		params := map[string]float64{"Z": depth}
		if hasFeed {
			params["F"] = feed
			hasFeed = false
		}
		emit("G1", params)
	}
	dwell := func() {
		if !math.IsNaN(e.p) && e.p > 0 {
			emit("G4", map[string]float64{"P": e.p})
		}
	}

	// Never approach the hole from below the retract plane.
	start := e.z
	height := start
	if height < e.r {
		height = e.r
		emit("G0", map[string]float64{"Z": height})
	}
	emit("G0", map[string]float64{"X": e.x, "Y": e.y})

	retractZ := e.r
	if e.retract != "G99" && start > e.r {
		retractZ = start
	}

	switch cmd.Code {
	case "G81", "G82":
		if e.r < height {
			emit("G0", map[string]float64{"Z": e.r})
		}
		drill(e.depth)
		if cmd.Code == "G82" {
			dwell()
		}
		emit("G0", map[string]float64{"Z": retractZ})
	case "G83":
		// Peck in Q steps below R, retracting fully between pecks. The
		// re-entry rapid stops a tenth of a peck above the previous
		// bottom so the bit never rapids into stock.
		clearance := e.q / 10
		for peck, cursor := 0, height; cursor > e.depth; peck++ {
			rapidZ := e.r - float64(peck)*e.q
			if peck > 0 {
				rapidZ += clearance
			}
			emit("G0", map[string]float64{"Z": rapidZ})
			cursor = math.Max(e.r-float64(peck+1)*e.q, e.depth)
			drill(cursor)
			dwell()
			emit("G0", map[string]float64{"Z": e.r})
		}
		if retractZ != e.r {
			emit("G0", map[string]float64{"Z": retractZ})
		}
	}
	e.z = retractZ
	return moves, nil
}
