package dialect

import "github.com/FocuswithJustin/JuniperCAM/core/rs274"

// builtins maps names to constructors so every caller gets a private copy.
var builtins = map[string]func() *Dialect{
	"default":  Default,
	"linuxcnc": LinuxCNC,
	"grbl":     GRBL,
}

// Default is the built-in table with the lenient policy and no additions.
func Default() *Dialect {
	return &Dialect{Name: "default"}
}

// LinuxCNC extends the default table with the wider LinuxCNC code surface:
// coordinate systems, path control, reference and offset codes, feed and
// speed overrides, threading and probing motion, and spindle orientation.
func LinuxCNC() *Dialect {
	return &Dialect{
		Name:    "linuxcnc",
		Extends: "default",
		Groups: []rs274.GroupSpec{
			{Name: "override", Rank: 93, Codes: []rs274.CodeSpec{
				{Codes: "M48-M49"},
				{Codes: "M50-M53", Optional: "P"},
			}},
			{Name: "coordinate system", Rank: 114, Codes: []rs274.CodeSpec{
				{Codes: "G54-G59"},
				{Codes: "G59.1"},
				{Codes: "G59.2"},
				{Codes: "G59.3"},
			}},
			{Name: "path control", Rank: 116, Codes: []rs274.CodeSpec{
				{Codes: "G61"},
				{Codes: "G61.1"},
				{Codes: "G64", Optional: "PQ"},
			}},
			{Name: "reference and offset", Rank: 125, Codes: []rs274.CodeSpec{
				{Codes: "G10", Optional: rs274.AxisLetters + "LPR"},
				{Codes: "G28", Optional: rs274.AxisLetters},
				{Codes: "G28.1"},
				{Codes: "G30", Optional: rs274.AxisLetters},
				{Codes: "G30.1"},
				{Codes: "G92", Optional: rs274.AxisLetters},
				{Codes: "G92.1"},
				{Codes: "G92.2"},
				{Codes: "G92.3"},
			}},
		},
		Extend: []Extension{
			{Group: "motion", Codes: []rs274.CodeSpec{
				{Codes: "G33", Optional: rs274.AxisLetters + "K"},
				{Codes: "G33.1", Optional: rs274.AxisLetters + "K"},
				{Codes: "G38.x", Optional: rs274.AxisLetters},
			}},
			{Group: "plane selection", Codes: []rs274.CodeSpec{
				{Codes: "G17.1"},
				{Codes: "G18.1"},
				{Codes: "G19.1"},
			}},
			{Group: "distance mode", Codes: []rs274.CodeSpec{
				{Codes: "G90.1"},
				{Codes: "G91.1"},
			}},
			{Group: "tool length offset", Codes: []rs274.CodeSpec{
				{Codes: "G43.1", Optional: rs274.AxisLetters},
				{Codes: "G43.2", Optional: "H"},
			}},
			{Group: "cutter compensation", Codes: []rs274.CodeSpec{
				{Codes: "G41.1", Optional: "DL"},
				{Codes: "G42.1", Optional: "DL"},
			}},
			{Group: "spindle", Codes: []rs274.CodeSpec{
				{Codes: "M19", Optional: "RQP"},
			}},
		},
	}
}

// GRBL extends the default table with the codes grbl firmware understands.
// Unknown codes are rejected rather than reordered.
func GRBL() *Dialect {
	return &Dialect{
		Name:    "grbl",
		Extends: "default",
		Strict:  true,
		Groups: []rs274.GroupSpec{
			{Name: "coordinate system", Rank: 114, Codes: []rs274.CodeSpec{
				{Codes: "G54-G59"},
			}},
			{Name: "reference", Rank: 125, Codes: []rs274.CodeSpec{
				{Codes: "G28", Optional: rs274.AxisLetters},
				{Codes: "G28.1"},
				{Codes: "G30", Optional: rs274.AxisLetters},
				{Codes: "G30.1"},
				{Codes: "G92", Optional: rs274.AxisLetters},
				{Codes: "G92.1"},
			}},
		},
		Extend: []Extension{
			{Group: "motion", Codes: []rs274.CodeSpec{
				{Codes: "G38.x", Optional: rs274.AxisLetters},
			}},
		},
	}
}
