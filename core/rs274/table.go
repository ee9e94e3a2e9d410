package rs274

// Group ranks of the built-in table. Ranks are spaced by ten so dialect
// tables can interleave their own groups without renumbering, with the
// dual-role letter rows slotted immediately before the group they attach to.
const (
	RankLineNumber   = 0
	RankNonModal     = 10
	RankUnits        = 20
	RankDistance     = 30
	RankProgramStop  = 40
	RankToolSelect   = 45
	RankToolChange   = 50
	RankToolLength   = 60
	RankCutterComp   = 70
	RankSpindleSpeed = 75
	RankSpindle      = 80
	RankCoolantOn    = 90
	RankFeedRate     = 95
	RankFeedMode     = 100
	RankCycleReturn  = 110
	RankPlane        = 120
	RankMotion       = 130
	RankDwell        = 140
	RankCoolantOff   = 150
	RankProgramEnd   = 160
)

// AxisLetters are the coordinate parameter letters every motion code accepts.
const AxisLetters = "ABCUVWXYZ"

// DefaultRows returns the built-in modal group table as fresh declarative
// rows. The table orders commands the way LinuxCNC-derived controllers
// execute them: configuration first, spindle and coolant next, motion late,
// program end last.
//
// A standalone T, S or F command sorts immediately before the group that
// would otherwise absorb it, so "T10" alone still precedes a tool change on
// a later line and "F100" alone precedes any feed-dependent motion.
func DefaultRows() []GroupSpec {
	return []GroupSpec{
		{Name: "line number", Rank: RankLineNumber, Codes: []CodeSpec{
			{Codes: "N"},
		}},
		{Name: "non-modal", Rank: RankNonModal, Codes: []CodeSpec{
			{Codes: "G9"},
		}},
		{Name: "units", Rank: RankUnits, Codes: []CodeSpec{
			{Codes: "G20-G21"},
		}},
		{Name: "distance mode", Rank: RankDistance, Codes: []CodeSpec{
			{Codes: "G90-G91"},
		}},
		{Name: "program stop", Rank: RankProgramStop, Codes: []CodeSpec{
			{Codes: "M0-M1"},
		}},
		{Name: "tool select", Rank: RankToolSelect, Codes: []CodeSpec{
			{Codes: "T"},
		}},
		{Name: "tool change", Rank: RankToolChange, Attach: "T", Codes: []CodeSpec{
			{Codes: "M6"},
		}},
		{Name: "tool length offset", Rank: RankToolLength, Codes: []CodeSpec{
			{Codes: "G43-G44", Optional: "H"},
			{Codes: "G49"},
		}},
		{Name: "cutter compensation", Rank: RankCutterComp, Codes: []CodeSpec{
			{Codes: "G41-G42", Optional: "D"},
			{Codes: "G40"},
		}},
		{Name: "spindle speed", Rank: RankSpindleSpeed, Codes: []CodeSpec{
			{Codes: "S"},
		}},
		{Name: "spindle", Rank: RankSpindle, Attach: "S", Codes: []CodeSpec{
			{Codes: "M3-M5"},
		}},
		{Name: "coolant on", Rank: RankCoolantOn, Codes: []CodeSpec{
			{Codes: "M7-M8"},
		}},
		{Name: "feed rate", Rank: RankFeedRate, Codes: []CodeSpec{
			{Codes: "F"},
		}},
		{Name: "feed rate mode", Rank: RankFeedMode, Codes: []CodeSpec{
			{Codes: "G93-G95"},
		}},
		{Name: "cycle return", Rank: RankCycleReturn, Codes: []CodeSpec{
			{Codes: "G98-G99"},
		}},
		{Name: "plane selection", Rank: RankPlane, Codes: []CodeSpec{
			{Codes: "G17-G19"},
		}},
		{Name: "motion", Rank: RankMotion, Attach: "F", Codes: []CodeSpec{
			{Codes: "G0-G1", Optional: AxisLetters},
			{Codes: "G2-G3", Optional: AxisLetters + "IJKR"},
			{Codes: "G5.x", Optional: AxisLetters + "IJPQL"},
			{Codes: "G73", Optional: AxisLetters + "RLQ"},
			{Codes: "G76", Optional: AxisLetters + "PIJRKQHLE"},
			{Codes: "G80"},
			{Codes: "G81-G82", Optional: AxisLetters + "RLP"},
			{Codes: "G83", Optional: AxisLetters + "RLQ"},
			{Codes: "G84", Optional: AxisLetters + "RL"},
			{Codes: "G85", Optional: AxisLetters + "RLP"},
			{Codes: "G89", Optional: AxisLetters + "RLP"},
		}},
		{Name: "dwell", Rank: RankDwell, Codes: []CodeSpec{
			{Codes: "G4", Required: "P"},
		}},
		{Name: "coolant off", Rank: RankCoolantOff, Codes: []CodeSpec{
			{Codes: "M9"},
		}},
		{Name: "program end", Rank: RankProgramEnd, Codes: []CodeSpec{
			{Codes: "M2"},
			{Codes: "M30"},
			{Codes: "M60"},
		}},
	}
}
