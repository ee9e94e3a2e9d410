// Package program normalizes whole RS-274 programs line by line and applies
// downstream rewrites to the result.
//
// The block normalizer is stateless on purpose; this package carries the one
// piece of cross-line state real programs rely on: the active motion
// command. A line like "X1 Y2" continues the previous motion, so when a
// block fails only because its axis words went unclaimed, normalization
// retries once with the active motion command appended. After a G80 the
// active motion resets to G0, since canceling a canned cycle must not let a
// later axis-only line resume it.
package program

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
)

// BlockError ties a normalization failure to its source line.
type BlockError struct {
	Line   int    // 1-based physical line number
	Source string // raw line text
	Err    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Program is a sequence of normalized blocks.
type Program struct {
	Blocks []*rs274.Block
}

// CommandCount returns the total number of commands across all blocks.
func (p *Program) CommandCount() int {
	total := 0
	for _, b := range p.Blocks {
		total += len(b.Commands)
	}
	return total
}

// String serializes the program canonically, one block per line.
func (p *Program) String() string {
	var sb strings.Builder
	for _, b := range p.Blocks {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Digest returns the content digest of the program's canonical
// serialization.
func (p *Program) Digest() string {
	return rs274.Blake3Hash([]byte(p.String()))
}

// Options configures program normalization.
type Options struct {
	// Normalizer normalizes each block. Nil selects the default table.
	Normalizer *rs274.Normalizer

	// StickyMotion retries a block whose parameters went unclaimed with
	// the active motion command appended.
	StickyMotion bool
}

// DefaultOptions enables the sticky motion retry against the default table.
func DefaultOptions() Options {
	return Options{StickyMotion: true}
}

// Normalize reads a program and normalizes every block, stopping at the
// first failure. Blank lines and % wrapper lines are skipped; comment-only
// lines survive as empty blocks so writers can re-emit them.
func Normalize(r io.Reader, opts Options) (*Program, error) {
	p := &Program{}
	err := eachLine(r, opts, func(block *rs274.Block, err *BlockError) error {
		if err != nil {
			return err
		}
		p.Blocks = append(p.Blocks, block)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NormalizeString normalizes a program held in memory.
func NormalizeString(src string, opts Options) (*Program, error) {
	return Normalize(strings.NewReader(src), opts)
}

// Check normalizes every block and collects every failure instead of
// stopping at the first. A clean program yields no errors.
func Check(r io.Reader, opts Options) []error {
	var errs []error
	_ = eachLine(r, opts, func(_ *rs274.Block, err *BlockError) error {
		if err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	return errs
}

// eachLine drives the per-line normalization loop shared by Normalize and
// Check.
func eachLine(r io.Reader, opts Options, visit func(*rs274.Block, *BlockError) error) error {
	n := opts.Normalizer
	if n == nil {
		n = rs274.MustNormalizer(rs274.Options{})
	}
	sticky := &stickyMotion{normalizer: n, enabled: opts.StickyMotion}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "%" {
			continue
		}

		block, err := sticky.normalize(line)
		if err != nil {
			if visitErr := visit(nil, &BlockError{Line: lineno, Source: line, Err: err}); visitErr != nil {
				return visitErr
			}
			continue
		}
		if block.Empty() && len(block.Comments) == 0 && block.LineNumber == nil {
			continue
		}
		if err := visit(block, nil); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading program: %w", err)
	}
	return nil
}

// stickyMotion tracks the active motion command between blocks. The motion
// group is the one that attaches F.
type stickyMotion struct {
	normalizer *rs274.Normalizer
	enabled    bool
	motion     string
}

func (s *stickyMotion) normalize(line string) (*rs274.Block, error) {
	block, err := s.normalizer.NormalizeBlock(line)
	if err != nil {
		if !s.enabled || s.motion == "" || !isUnconsumed(err) {
			return nil, err
		}
		retry, retryErr := s.normalizer.NormalizeBlock(line + " " + s.motion)
		if retryErr != nil {
			// The retry was a guess; the original failure is the
			// one worth reporting.
			return nil, err
		}
		block = retry
	}
	s.update(block)
	return block, nil
}

func (s *stickyMotion) update(block *rs274.Block) {
	for _, cmd := range block.Commands {
		entry, ok := s.normalizer.Table().Lookup(cmd.Code)
		if !ok || entry.Group.Attach != 'F' {
			continue
		}
		if cmd.Code == "G80" {
			s.motion = "G0"
		} else {
			s.motion = cmd.Code
		}
	}
}

func isUnconsumed(err error) bool {
	return errors.Is(err, rs274.ErrUnconsumedParameter)
}
