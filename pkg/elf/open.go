package elf

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Open maps the named file read-only and decodes it. The mapping is released
// before Open returns; the File holds its own copies of segment data.
func Open(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	st, err := fp.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		// Nothing to map; let the decoder report the missing magic.
		return Decode(nil)
	}

	data, err := mmap.Map(fp, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer data.Unmap()

	f, err := Decode(data)
	if err != nil {
		return nil, detach(err)
	}
	return f, nil
}

// detach copies the frame inputs of a DecodeError so they stay valid after the
// mapping they point into goes away.
func detach(err error) error {
	de, ok := err.(*DecodeError)
	if !ok {
		return err
	}
	for i := range de.Frames {
		in := de.Frames[i].Input
		if len(in) > hexDumpLen {
			in = in[:hexDumpLen]
		}
		de.Frames[i].Input = append([]byte(nil), in...)
	}
	return de
}
