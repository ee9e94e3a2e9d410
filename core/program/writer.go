package program

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

// WriteOptions controls program serialization.
type WriteOptions struct {
	// LineNumbers prefixes every output line with an N word, numbering in
	// steps of ten.
	LineNumbers bool

	// Comments re-emits recorded comments, each on its own line ahead of
	// its block's commands.
	Comments bool

	// Annotate, when set, appends its return value as a trailing comment
	// on each command line. An empty return adds nothing.
	Annotate func(*rs274.BoundCommand) string
}

// Write serializes the program one command per line.
func Write(w io.Writer, p *Program, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	n := 0
	line := func(text string) {
		if opts.LineNumbers {
			n += 10
			fmt.Fprintf(bw, "N%d %s\n", n, text)
			return
		}
		bw.WriteString(text)
		bw.WriteByte('\n')
	}
	for _, b := range p.Blocks {
		if opts.Comments {
			for _, c := range b.Comments {
				line("( " + c + " )")
			}
		}
		for i := range b.Commands {
			cmd := &b.Commands[i]
			text := cmd.String()
			if opts.Annotate != nil {
				if note := opts.Annotate(cmd); note != "" {
					text += " ( " + note + " )"
				}
			}
			line(text)
		}
	}
	return bw.Flush()
}

// Render serializes the program to a string.
func Render(p *Program, opts WriteOptions) string {
	var sb strings.Builder
	_ = Write(&sb, p, opts)
	return sb.String()
}
