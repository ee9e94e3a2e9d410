package rs274

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the normalization pipeline. Every typed error below
// unwraps to one of these, so callers can classify failures with errors.Is.
var (
	// ErrMalformedToken indicates text that does not scan as a block token
	ErrMalformedToken = errors.New("malformed token")
	// ErrDuplicateParameter indicates a parameter letter appearing twice in one block
	ErrDuplicateParameter = errors.New("duplicate parameter")
	// ErrDuplicateCommand indicates a command code appearing twice in one block
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrModalConflict indicates two commands from the same modal group in one block
	ErrModalConflict = errors.New("modal group conflict")
	// ErrMissingParameter indicates a command whose required parameter is absent
	ErrMissingParameter = errors.New("missing required parameter")
	// ErrUnconsumedParameter indicates parameter letters no command claims
	ErrUnconsumedParameter = errors.New("unconsumed parameter")
	// ErrUnknownCode indicates a code outside the modal table under strict policy
	ErrUnknownCode = errors.New("unknown code")
	// ErrAmbiguousParameter indicates a parameter letter claimed by more than one command
	ErrAmbiguousParameter = errors.New("ambiguous parameter")
)

// MalformedTokenError reports input that does not match the block token
// grammar. Text is the offending source substring and Offset its byte
// position within the block.
type MalformedTokenError struct {
	Text   string // offending substring
	Offset int    // byte offset within the block
	Reason string // optional detail (e.g. "unterminated comment")
}

func (e *MalformedTokenError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot parse %q at offset %d: %s", e.Text, e.Offset, e.Reason)
	}
	return fmt.Sprintf("cannot parse %q at offset %d", e.Text, e.Offset)
}

func (e *MalformedTokenError) Unwrap() error { return ErrMalformedToken }

// DuplicateParameterError reports a parameter letter that occurs more than
// once in a block.
type DuplicateParameterError struct {
	Letter string // parameter letter, e.g. "X"
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("parameter %s given more than once", e.Letter)
}

func (e *DuplicateParameterError) Unwrap() error { return ErrDuplicateParameter }

// DuplicateCommandError reports a command code that occurs more than once in
// a block. Dual-role letters duplicate by letter: both T1 and T2 carry the
// code "T".
type DuplicateCommandError struct {
	Code string // canonical command code, e.g. "G1" or "T"
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %s given more than once", e.Code)
}

func (e *DuplicateCommandError) Unwrap() error { return ErrDuplicateCommand }

// ModalGroupConflictError reports two or more distinct commands from the same
// modal group in one block.
type ModalGroupConflictError struct {
	Group string   // group name from the modal table
	Codes []string // conflicting codes in encounter order
}

func (e *ModalGroupConflictError) Error() string {
	return fmt.Sprintf("commands %s conflict in modal group %q", strings.Join(e.Codes, ", "), e.Group)
}

func (e *ModalGroupConflictError) Unwrap() error { return ErrModalConflict }

// MissingParameterError reports a command whose required parameter letter is
// absent from the block.
type MissingParameterError struct {
	Code   string // command code, e.g. "G4"
	Letter string // required parameter letter, e.g. "P"
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("command %s requires parameter %s", e.Code, e.Letter)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// UnconsumedParameterError reports parameter letters present in the block
// that no command claims.
type UnconsumedParameterError struct {
	Letters []string // orphaned parameter letters, sorted
}

func (e *UnconsumedParameterError) Error() string {
	if len(e.Letters) == 1 {
		return fmt.Sprintf("parameter %s is not used by any command", e.Letters[0])
	}
	return fmt.Sprintf("parameters %s are not used by any command", strings.Join(e.Letters, ", "))
}

func (e *UnconsumedParameterError) Unwrap() error { return ErrUnconsumedParameter }

// UnknownCodeError reports a command code absent from the modal table. It is
// returned only under the strict policy; the lenient default routes unknown
// codes into fallback groups instead.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown command %s", e.Code)
}

func (e *UnknownCodeError) Unwrap() error { return ErrUnknownCode }

// AmbiguousParameterError reports a parameter letter that two or more
// commands in the block could claim, or a dual-role letter with more than
// one attachment target present.
type AmbiguousParameterError struct {
	Letter string   // contested letter
	Codes  []string // claimant command codes
}

func (e *AmbiguousParameterError) Error() string {
	return fmt.Sprintf("commands %s all claim parameter %s", strings.Join(e.Codes, ", "), e.Letter)
}

func (e *AmbiguousParameterError) Unwrap() error { return ErrAmbiguousParameter }

// NewMalformedToken creates a MalformedTokenError.
func NewMalformedToken(text string, offset int, reason string) *MalformedTokenError {
	return &MalformedTokenError{Text: text, Offset: offset, Reason: reason}
}
