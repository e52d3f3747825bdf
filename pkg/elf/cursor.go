package elf

import (
	"bytes"
	"encoding/binary"
)

// cursor is a read position inside a byte slice. Decoders take a cursor by
// value and return the advanced one; on failure they hand back the cursor they
// were given, so nothing is consumed.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(b []byte) cursor {
	return cursor{buf: b}
}

// rest returns the unread bytes.
func (c cursor) rest() []byte {
	return c.buf[c.pos:]
}

// Len returns the number of unread bytes.
func (c cursor) Len() int {
	return len(c.buf) - c.pos
}

func (c cursor) fail(label string, cause error) error {
	return fail(label, c.rest(), cause)
}

func (c cursor) take(label string, n int) (cursor, []byte, error) {
	if n < 0 || c.Len() < n {
		return c, nil, c.fail(label, ErrUnexpectedEOF)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return c, b, nil
}

func (c cursor) skip(label string, n int) (cursor, error) {
	next, _, err := c.take(label, n)
	return next, err
}

// tag consumes want, or fails with ErrMismatch.
func (c cursor) tag(label string, want []byte) (cursor, error) {
	return c.oneOf(label, want)
}

// oneOf consumes the first of choices that matches the input.
func (c cursor) oneOf(label string, choices ...[]byte) (cursor, error) {
	for _, want := range choices {
		if bytes.HasPrefix(c.rest(), want) {
			c.pos += len(want)
			return c, nil
		}
	}
	return c, c.fail(label, ErrMismatch)
}

func (c cursor) u8(label string) (cursor, uint8, error) {
	next, b, err := c.take(label, 1)
	if err != nil {
		return c, 0, err
	}
	return next, b[0], nil
}

func (c cursor) u16(label string) (cursor, uint16, error) {
	next, b, err := c.take(label, 2)
	if err != nil {
		return c, 0, err
	}
	return next, binary.LittleEndian.Uint16(b), nil
}

func (c cursor) u32(label string) (cursor, uint32, error) {
	next, b, err := c.take(label, 4)
	if err != nil {
		return c, 0, err
	}
	return next, binary.LittleEndian.Uint32(b), nil
}

func (c cursor) u64(label string) (cursor, uint64, error) {
	next, b, err := c.take(label, 8)
	if err != nil {
		return c, 0, err
	}
	return next, binary.LittleEndian.Uint64(b), nil
}

func (c cursor) addr(label string) (cursor, Address, error) {
	next, v, err := c.u64(label)
	return next, Address(v), err
}

// uintN reads an unsigned integer of the given width.
func (c cursor) uintN(label string, width int) (cursor, uint64, error) {
	switch width {
	case 2:
		next, v, err := c.u16(label)
		return next, uint64(v), err
	case 4:
		next, v, err := c.u32(label)
		return next, uint64(v), err
	default:
		return c.u64(label)
	}
}

// enumeration is a closed set of codes backed by a fixed-width integer.
type enumeration interface {
	~uint16 | ~uint32 | ~uint64
	Valid() bool
}

// readEnum reads a width-byte code and converts it to T, failing with an
// InvalidValueError if the code is not part of T.
func readEnum[T enumeration](c cursor, label string, width int) (cursor, T, error) {
	next, v, err := c.uintN(label, width)
	if err != nil {
		return c, 0, err
	}
	t := T(v)
	if !t.Valid() {
		return c, 0, c.fail(label, &InvalidValueError{Field: label, Value: v})
	}
	return next, t, nil
}

func readProgFlags(c cursor, label string) (cursor, ProgFlag, error) {
	next, v, err := c.u32(label)
	if err != nil {
		return c, 0, err
	}
	f, err := ProgFlagFromBits(v)
	if err != nil {
		return c, 0, c.fail(label, err)
	}
	return next, f, nil
}
