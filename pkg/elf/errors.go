package elf

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Causes attached to a DecodeError.
var (
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrMismatch      = errors.New("unexpected bytes")
	ErrOutOfBounds   = errors.New("offset out of bounds")
	ErrUnterminated  = errors.New("dynamic table has no DT_NULL terminator")
	ErrBadEntrySize  = errors.New("invalid program header entry size")
)

// An InvalidValueError is returned when an enumerated field holds a code
// outside of its accepted set.
type InvalidValueError struct {
	Field string
	Value uint64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s 0x%x", e.Field, e.Value)
}

// An InvalidFlagsError is returned when a flag word has bits set that are not
// part of the recognised set.
type InvalidFlagsError struct {
	Value   uint32
	Unknown uint32
}

func (e *InvalidFlagsError) Error() string {
	return fmt.Sprintf("segment flags 0x%08x have unknown bits 0x%08x", e.Value, e.Unknown)
}

// A Frame records one decoding layer that failed: its label and the input it
// was looking at.
type Frame struct {
	Label string
	Input []byte
}

// A DecodeError describes why Decode rejected its input. Frames are ordered
// innermost first.
type DecodeError struct {
	Frames []Frame
	Err    error
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	for i := len(e.Frames) - 1; i >= 0; i-- {
		sb.WriteString(e.Frames[i].Label)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Label returns the label of the innermost frame.
func (e *DecodeError) Label() string {
	if len(e.Frames) == 0 {
		return ""
	}
	return e.Frames[0].Label
}

// WriteTrace writes one line per frame, each followed by a short hex preview of
// the bytes the frame failed on.
func (e *DecodeError) WriteTrace(w io.Writer) error {
	for _, f := range e.Frames {
		if _, err := fmt.Fprintf(w, "%s at: %v\n", f.Label, HexDump(f.Input)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "error: %v\n", e.Err)
	return err
}

// Trace returns the output of WriteTrace as a string.
func (e *DecodeError) Trace() string {
	var sb strings.Builder
	_ = e.WriteTrace(&sb)
	return sb.String()
}

// fail starts a new DecodeError.
func fail(label string, input []byte, cause error) error {
	return &DecodeError{
		Frames: []Frame{{Label: label, Input: input}},
		Err:    cause,
	}
}

// wrap adds an outer frame to err. Errors that are not DecodeErrors become the
// cause of a new one.
func wrap(err error, label string, input []byte) error {
	var de *DecodeError
	if errors.As(err, &de) {
		de.Frames = append(de.Frames, Frame{Label: label, Input: input})
		return de
	}
	return fail(label, input, err)
}

const hexDumpLen = 20

// HexDump formats the leading bytes of a slice as space separated hex.
type HexDump []byte

func (h HexDump) String() string {
	const hexDigits = "0123456789abcdef"
	b := []byte(h)
	if len(b) > hexDumpLen {
		b = b[:hexDumpLen]
	}
	d := make([]byte, 0, 3*len(b))
	for _, c := range b {
		d = append(d, hexDigits[c>>4], hexDigits[c&15], ' ')
	}
	return strings.TrimSuffix(string(d), " ")
}
