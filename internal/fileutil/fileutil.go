// Package fileutil handles program file I/O for the CLI and server: the
// "-" stdin/stdout convention, transparent xz and gzip compression, and
// atomic output writes.
package fileutil

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Magic bytes of the supported compression containers.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// input wraps a decompressed stream with the close chain of its source.
type input struct {
	io.Reader
	close func() error
}

func (in *input) Close() error { return in.close() }

// OpenInput opens a program file for reading. "-" or the empty string
// selects stdin. Gzip and xz streams are recognized by their magic bytes
// and decompressed transparently, so compressed programs work from both
// files and pipes.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return wrapInput(os.Stdin, func() error { return nil })
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	in, err := wrapInput(f, f.Close)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return in, nil
}

func wrapInput(src io.Reader, closeFn func() error) (io.ReadCloser, error) {
	br := bufio.NewReader(src)
	magic, _ := br.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &input{Reader: zr, close: func() error {
			zerr := zr.Close()
			if err := closeFn(); err != nil {
				return err
			}
			return zerr
		}}, nil
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &input{Reader: xr, close: closeFn}, nil
	}
	return &input{Reader: br, close: closeFn}, nil
}

// Output writes a program file. File outputs go to a temp file in the
// target directory and are renamed into place by Close, so readers never
// observe a partial write. A ".xz" or ".gz" path suffix selects
// compression.
type Output struct {
	w    io.Writer
	comp io.Closer // compressor, when the path selects one
	file *os.File  // nil when writing to stdout
	temp string
	path string
	done bool
}

// CreateOutput opens a program file for writing. "-" or the empty string
// selects stdout, which is written through directly.
func CreateOutput(path string) (*Output, error) {
	if path == "" || path == "-" {
		return &Output{w: os.Stdout, path: "-"}, nil
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	out := &Output{w: f, file: f, temp: f.Name(), path: path}
	switch {
	case strings.HasSuffix(path, ".xz"):
		xw, err := xz.NewWriter(f)
		if err != nil {
			out.Discard()
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		out.w, out.comp = xw, xw
	case strings.HasSuffix(path, ".gz"):
		zw := gzip.NewWriter(f)
		out.w, out.comp = zw, zw
	}
	return out, nil
}

// Write writes to the output stream.
func (o *Output) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

// Close flushes the output and moves it into place. Closing a stdout
// output is a no-op.
func (o *Output) Close() error {
	if o.done || o.file == nil {
		o.done = true
		return nil
	}
	o.done = true

	if o.comp != nil {
		if err := o.comp.Close(); err != nil {
			o.remove()
			return fmt.Errorf("write %s: %w", o.path, err)
		}
	}
	if err := o.file.Close(); err != nil {
		o.remove()
		return fmt.Errorf("write %s: %w", o.path, err)
	}
	if err := os.Rename(o.temp, o.path); err != nil {
		o.remove()
		return fmt.Errorf("write %s: %w", o.path, err)
	}
	return nil
}

// Discard abandons the output without touching the target path. Safe to
// call after Close, where it does nothing.
func (o *Output) Discard() {
	if o.done || o.file == nil {
		o.done = true
		return
	}
	o.done = true
	o.file.Close()
	o.remove()
}

func (o *Output) remove() {
	if o.temp != "" {
		os.Remove(o.temp)
	}
}
