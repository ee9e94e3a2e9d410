package program

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

func TestWriteLineNumbers(t *testing.T) {
	p, err := NormalizeString("G21\nG0 X1 Y2", DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, p, WriteOptions{LineNumbers: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "N10 G21\nN20 G0 X1 Y2\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriteComments(t *testing.T) {
	p, err := NormalizeString("( setup )\nG21 ( metric )", DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}

	if got, want := Render(p, WriteOptions{Comments: true}), "( setup )\n( metric )\nG21\n"; got != want {
		t.Errorf("with comments = %q, want %q", got, want)
	}
	if got, want := Render(p, WriteOptions{}), "G21\n"; got != want {
		t.Errorf("without comments = %q, want %q", got, want)
	}
}

func TestWriteCommentsNumbered(t *testing.T) {
	p, err := NormalizeString("( setup )\nG21", DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}
	got := Render(p, WriteOptions{LineNumbers: true, Comments: true})
	want := "N10 ( setup )\nN20 G21\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriteAnnotate(t *testing.T) {
	p, err := NormalizeString("G0 X1\nG21", DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}
	opts := WriteOptions{Annotate: func(c *rs274.BoundCommand) string {
		if c.Code == "G0" {
			return "rapid"
		}
		return ""
	}}
	want := "G0 X1 ( rapid )\nG21\n"
	if got := Render(p, opts); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriteSplitsBlocksOnePerLine(t *testing.T) {
	p, err := NormalizeString("G90 G17 M8", DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}
	want := "G90\nM8\nG17\n"
	if got := Render(p, WriteOptions{}); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	src := "G21\nT2 M6\nM3 S900\nG0 X0 Y0 Z5\nG1 Z-0.5 F120\nX10\nM2"
	p1, err := NormalizeString(src, DefaultOptions())
	if err != nil {
		t.Fatalf("NormalizeString: %v", err)
	}
	p2, err := NormalizeString(Render(p1, WriteOptions{}), DefaultOptions())
	if err != nil {
		t.Fatalf("re-normalize rendered text: %v", err)
	}

	flat := func(p *Program) []string {
		var out []string
		for _, b := range p.Blocks {
			for i := range b.Commands {
				out = append(out, b.Commands[i].String())
			}
		}
		return out
	}
	if got, want := flat(p2), flat(p1); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip commands = %q, want %q", got, want)
	}
}
