package elf

import "fmt"

// Contents is the decoded payload of a segment. The set of implementations is
// closed: Dynamic and Unknown.
type Contents interface {
	isContents()
}

// Dynamic is the payload of a PT_DYNAMIC segment. The DT_NULL terminator is
// not included.
type Dynamic struct {
	Entries []DynamicEntry
}

// Unknown is the payload of every segment type whose contents are not decoded.
type Unknown struct{}

func (Dynamic) isContents() {}
func (Unknown) isContents() {}

// A DynamicEntry is one (tag, value) pair of a dynamic table.
type DynamicEntry struct {
	Tag DynTag
	Val Address
}

func (e DynamicEntry) String() string {
	return fmt.Sprintf("%v = %v", e.Tag, e.Val)
}

// decodeDynamic reads entries until DT_NULL. Running out of input before the
// terminator is an error; bytes after the terminator are ignored.
func decodeDynamic(raw []byte) ([]DynamicEntry, error) {
	var entries []DynamicEntry
	c := newCursor(raw)
	for i := 0; ; i++ {
		if c.Len() < dynEntrySize {
			return nil, c.fail(fmt.Sprintf("Dynamic entry %d", i), ErrUnterminated)
		}
		next, e, err := decodeDynamicEntry(c)
		if err != nil {
			return nil, wrap(err, fmt.Sprintf("Dynamic entry %d", i), c.rest())
		}
		c = next
		if e.Tag == DT_NULL {
			return entries, nil
		}
		entries = append(entries, e)
	}
}

func decodeDynamicEntry(c cursor) (cursor, DynamicEntry, error) {
	var (
		e   DynamicEntry
		err error
	)
	start := c
	if c, e.Tag, err = readEnum[DynTag](c, "Dynamic tag", 8); err != nil {
		return start, e, err
	}
	if c, e.Val, err = c.addr("Dynamic value"); err != nil {
		return start, e, err
	}
	return c, e, nil
}
