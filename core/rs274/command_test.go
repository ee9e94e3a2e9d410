package rs274

import (
	"encoding/json"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{0, "0"},
		{-0.5, "-0.5"},
		{5000, "5000"},
		{0.125, "0.125"},
		{1000000, "1000000"},
		{38.2, "38.2"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoundCommandString(t *testing.T) {
	value := 11.0
	tests := []struct {
		name string
		cmd  BoundCommand
		want string
	}{
		{
			name: "bare command",
			cmd:  BoundCommand{Code: "M8"},
			want: "M8",
		},
		{
			name: "parameters sort by letter",
			cmd:  BoundCommand{Code: "G1", Params: map[string]float64{"Z": -0.5, "F": 5000, "X": 1}},
			want: "G1 F5000 X1 Z-0.5",
		},
		{
			name: "standalone letter carries value",
			cmd:  BoundCommand{Code: "T", Value: &value},
			want: "T11",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBlockJSON(t *testing.T) {
	block, err := Normalize("N10 T11 M6 ( swap tool )")
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	var decoded Block
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.String() != block.String() {
		t.Errorf("round trip = %q, want %q", decoded.String(), block.String())
	}
	if decoded.LineNumber == nil || *decoded.LineNumber != 10 {
		t.Errorf("LineNumber = %v, want 10", decoded.LineNumber)
	}
	if len(decoded.Comments) != 1 || decoded.Comments[0] != "swap tool" {
		t.Errorf("Comments = %v, want [swap tool]", decoded.Comments)
	}
}

func TestBlockDigest(t *testing.T) {
	a, err := Normalize("G1 X1 F100")
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	b, err := Normalize("F100 X1 G1")
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Error("permuted blocks should share a digest")
	}
	c, err := Normalize("G1 X2 F100")
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	if a.Digest() == c.Digest() {
		t.Error("different blocks should not share a digest")
	}
	if len(a.Digest()) != 64 {
		t.Errorf("digest length = %d, want 64", len(a.Digest()))
	}
}
