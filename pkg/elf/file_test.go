package elf_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/elfload/pkg/elf"
	"github.com/grafana/elfload/pkg/elf/elftest"
)

func TestDecodeNoProgramHeaders(t *testing.T) {
	buf := elftest.New().WithEntry(0x1000).Bytes()

	f, err := elf.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, elf.ET_EXEC, f.Type)
	assert.Equal(t, elf.EM_X86_64, f.Machine)
	assert.Equal(t, elf.Address(0x1000), f.Entry)
	assert.NotNil(t, f.Progs)
	assert.Empty(t, f.Progs)
}

func TestDecodeLoadSegment(t *testing.T) {
	buf := elftest.New().WithEntry(0x1000).Add(elftest.Segment{
		Type:  elf.PT_LOAD,
		Flags: elf.PF_R | elf.PF_X,
		Vaddr: 0x1000,
		Memsz: 8,
		Align: 0x1000,
		Data:  []byte{0xde, 0xad, 0xbe, 0xef},
	}).Bytes()

	f, err := elf.Decode(buf)
	require.NoError(t, err)
	require.Len(t, f.Progs, 1)

	p := f.Progs[0]
	assert.Equal(t, elf.PT_LOAD, p.Type)
	assert.Equal(t, "R.X", p.Flags.String())
	assert.Equal(t, elf.Range{Start: 0x1000, End: 0x1008}, p.MemRange())
	assert.Equal(t, elf.Address(4), p.Filesz)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, p.Data)
	assert.Equal(t, elf.Unknown{}, p.Contents)
	assert.Equal(t, []*elf.Prog{p}, f.Loadable())
}

func TestDecodeDynamic(t *testing.T) {
	for _, tc := range []struct {
		name    string
		data    []byte
		want    []elf.DynamicEntry
		wantErr error
	}{
		{
			name: "needed then null",
			data: elftest.DynamicTable(
				elf.DynamicEntry{Tag: elf.DT_NEEDED},
				elf.DynamicEntry{Tag: elf.DT_NULL},
			),
			want: []elf.DynamicEntry{{Tag: elf.DT_NEEDED}},
		},
		{
			name: "garbage after null is ignored",
			data: append(elftest.DynamicTable(
				elf.DynamicEntry{Tag: elf.DT_STRTAB, Val: 0x400},
				elf.DynamicEntry{Tag: elf.DT_STRSZ, Val: 0x20},
				elf.DynamicEntry{Tag: elf.DT_NULL},
			), 0xff, 0xff, 0xff, 0xff, 0xff),
			want: []elf.DynamicEntry{
				{Tag: elf.DT_STRTAB, Val: 0x400},
				{Tag: elf.DT_STRSZ, Val: 0x20},
			},
		},
		{
			name: "only null",
			data: elftest.DynamicTable(elf.DynamicEntry{Tag: elf.DT_NULL}),
			want: nil,
		},
		{
			name: "unterminated",
			data: elftest.DynamicTable(
				elf.DynamicEntry{Tag: elf.DT_NEEDED, Val: 1},
				elf.DynamicEntry{Tag: elf.DT_NEEDED, Val: 2},
			),
			wantErr: elf.ErrUnterminated,
		},
		{
			name:    "trailing partial entry",
			data:    append(elftest.DynamicTable(elf.DynamicEntry{Tag: elf.DT_NEEDED}), 0, 0, 0, 0),
			wantErr: elf.ErrUnterminated,
		},
		{
			name:    "empty",
			data:    nil,
			wantErr: elf.ErrUnterminated,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := elftest.New().Add(elftest.Segment{
				Type:  elf.PT_DYNAMIC,
				Flags: elf.PF_R | elf.PF_W,
				Data:  tc.data,
			}).Bytes()

			f, err := elf.Decode(buf)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, f.Progs, 1)
			require.Equal(t, elf.Dynamic{Entries: tc.want}, f.Progs[0].Contents)
			require.Equal(t, tc.want, f.Dynamic())
		})
	}
}

func TestDecodeDynamicInvalidTag(t *testing.T) {
	buf := elftest.New().Add(elftest.Segment{
		Type: elf.PT_DYNAMIC,
		Data: elftest.DynamicTable(
			elf.DynamicEntry{Tag: 0x4242},
			elf.DynamicEntry{Tag: elf.DT_NULL},
		),
	}).Bytes()

	_, err := elf.Decode(buf)
	var ive *elf.InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, uint64(0x4242), ive.Value)

	var de *elf.DecodeError
	require.ErrorAs(t, err, &de)
	labels := make([]string, 0, len(de.Frames))
	for _, fr := range de.Frames {
		labels = append(labels, fr.Label)
	}
	assert.Equal(t, []string{"Dynamic tag", "Dynamic entry 0", "Dynamic table", "Program header 0"}, labels)
}

func TestDecodeBadMagic(t *testing.T) {
	buf := elftest.New().Bytes()
	buf[0] = 0x7e

	_, err := elf.Decode(buf)
	var de *elf.DecodeError
	require.ErrorAs(t, err, &de)
	require.ErrorIs(t, err, elf.ErrMismatch)
	assert.Equal(t, "Magic", de.Label())
	require.Len(t, de.Frames, 1)
	// Nothing was consumed: the frame points at the first byte.
	assert.Equal(t, buf, de.Frames[0].Input)
}

func TestDecodeIdentFields(t *testing.T) {
	for _, tc := range []struct {
		offset int
		value  byte
		label  string
	}{
		{4, 1, "Class"},
		{5, 2, "Endianness"},
		{6, 2, "Version"},
		{7, 9, "OS ABI"},
	} {
		t.Run(tc.label, func(t *testing.T) {
			buf := elftest.New().Bytes()
			buf[tc.offset] = tc.value

			_, err := elf.Decode(buf)
			var de *elf.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.label, de.Label())
			assert.Equal(t, buf[tc.offset:], de.Frames[0].Input)
		})
	}
}

func TestDecodeOSABILinux(t *testing.T) {
	b := elftest.New()
	b.OSABI = elf.ELFOSABI_LINUX
	f, err := elf.Decode(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, elf.ELFOSABI_LINUX, f.OSABI)
}

func TestDecodeVersionBis(t *testing.T) {
	buf := elftest.New().Bytes()
	binary.LittleEndian.PutUint32(buf[elftest.OffVersion:], 2)

	_, err := elf.Decode(buf)
	var ive *elf.InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "Version (bis)", ive.Field)
	assert.Equal(t, uint64(2), ive.Value)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	buf := elftest.New().Bytes()
	for n := 0; n < elftest.HeaderSize; n++ {
		_, err := elf.Decode(buf[:n])
		require.Error(t, err, "length %d", n)
	}
}

func TestDecodeMachine(t *testing.T) {
	for code := 0; code <= 0xffff; code++ {
		buf := elftest.New().Bytes()
		binary.LittleEndian.PutUint16(buf[elftest.OffMachine:], uint16(code))

		f, err := elf.Decode(buf)
		switch elf.Machine(code) {
		case elf.EM_386, elf.EM_X86_64:
			require.NoError(t, err)
			require.Equal(t, uint16(code), uint16(f.Machine))
		default:
			var ive *elf.InvalidValueError
			require.ErrorAs(t, err, &ive)
			require.Equal(t, uint64(code), ive.Value)
			require.Equal(t, "Machine", ive.Field)
		}
	}
}

func TestDecodeType(t *testing.T) {
	buf := elftest.New().Bytes()
	binary.LittleEndian.PutUint16(buf[elftest.OffType:], 0xf00d)
	_, err := elf.Decode(buf)
	var ive *elf.InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, uint64(0xf00d), ive.Value)

	binary.LittleEndian.PutUint16(buf[elftest.OffType:], uint16(elf.ET_DYN))
	f, err := elf.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, elf.ET_DYN, f.Type)
}

func TestDecodeSegmentFlags(t *testing.T) {
	for flags := uint32(0); flags < 16; flags++ {
		t.Run(fmt.Sprintf("0x%x", flags), func(t *testing.T) {
			buf := elftest.New().Add(elftest.Segment{Type: elf.PT_LOAD}).Bytes()
			binary.LittleEndian.PutUint32(buf[elftest.HeaderSize+4:], flags)

			f, err := elf.Decode(buf)
			if flags&^7 != 0 {
				var ife *elf.InvalidFlagsError
				require.ErrorAs(t, err, &ife)
				assert.Equal(t, flags, ife.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, flags, f.Progs[0].Flags.Bits())
		})
	}
}

func TestDecodeProgramHeaderCount(t *testing.T) {
	b := elftest.New()
	for i := 0; i < 3; i++ {
		b.Add(elftest.Segment{Type: elf.PT_NOTE, Vaddr: elf.Address(0x1000 * (i + 1))})
	}

	t.Run("fewer than table", func(t *testing.T) {
		buf := b.Bytes()
		binary.LittleEndian.PutUint16(buf[elftest.OffPhNum:], 2)
		f, err := elf.Decode(buf)
		require.NoError(t, err)
		require.Len(t, f.Progs, 2)
		assert.Equal(t, elf.Address(0x2000), f.Progs[1].Vaddr)
	})

	t.Run("all zero entries still count", func(t *testing.T) {
		z := elftest.New()
		for i := 0; i < 4; i++ {
			z.Add(elftest.Segment{})
		}
		f, err := elf.Decode(z.Bytes())
		require.NoError(t, err)
		require.Len(t, f.Progs, 4)
		for _, p := range f.Progs {
			assert.Equal(t, elf.PT_NULL, p.Type)
		}
	})

	t.Run("more than buffer", func(t *testing.T) {
		buf := b.Bytes()
		binary.LittleEndian.PutUint16(buf[elftest.OffPhNum:], 200)
		_, err := elf.Decode(buf)
		require.ErrorIs(t, err, elf.ErrOutOfBounds)
	})

	t.Run("zero entry size", func(t *testing.T) {
		buf := b.Bytes()
		binary.LittleEndian.PutUint16(buf[elftest.OffPhEntSize:], 0)
		_, err := elf.Decode(buf)
		require.ErrorIs(t, err, elf.ErrBadEntrySize)
	})

	t.Run("short entry size", func(t *testing.T) {
		buf := b.Bytes()
		binary.LittleEndian.PutUint16(buf[elftest.OffPhEntSize:], 16)
		_, err := elf.Decode(buf)
		require.ErrorIs(t, err, elf.ErrUnexpectedEOF)
	})

	t.Run("table offset past end", func(t *testing.T) {
		buf := b.Bytes()
		binary.LittleEndian.PutUint64(buf[elftest.OffPhOff:], ^uint64(0)-8)
		_, err := elf.Decode(buf)
		require.ErrorIs(t, err, elf.ErrOutOfBounds)
	})
}

func TestDecodeSegmentOutOfBounds(t *testing.T) {
	for _, tc := range []struct {
		name   string
		off    elf.Address
		filesz elf.Address
	}{
		{"offset past end", 1 << 20, 0},
		{"size past end", 0, 1 << 20},
		{"wraps", ^elf.Address(0) - 1, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := elftest.New().Add(elftest.Segment{
				Type:   elf.PT_LOAD,
				Off:    elftest.Addr(tc.off),
				Filesz: elftest.Addr(tc.filesz),
			}).Bytes()
			_, err := elf.Decode(buf)
			require.ErrorIs(t, err, elf.ErrOutOfBounds)
		})
	}
}

func TestProgRanges(t *testing.T) {
	b := elftest.New()
	for i, sz := range []int{0, 1, 7, 64} {
		b.Add(elftest.Segment{
			Type:  elf.PT_LOAD,
			Flags: elf.PF_R,
			Vaddr: elf.Address(0x10000 * (i + 1)),
			Memsz: elf.Address(sz * 2),
			Data:  make([]byte, sz),
		})
	}
	f, err := elf.Decode(b.Bytes())
	require.NoError(t, err)
	for _, p := range f.Progs {
		fr, mr := p.FileRange(), p.MemRange()
		assert.Equal(t, p.Off, fr.Start)
		assert.Equal(t, p.Off+p.Filesz, fr.End)
		assert.Equal(t, p.Vaddr, mr.Start)
		assert.Equal(t, p.Vaddr+p.Memsz, mr.End)
		assert.Equal(t, int(p.Filesz), len(p.Data))
	}
	// The zero-sized segment is skipped.
	assert.Len(t, f.Loadable(), 3)
}

func TestDecodeDoesNotRetainInput(t *testing.T) {
	buf := elftest.New().Add(elftest.Segment{
		Type: elf.PT_LOAD,
		Data: []byte{1, 2, 3, 4},
	}).Bytes()
	f, err := elf.Decode(buf)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, f.Progs[0].Data)
}

func TestDecodeErrorTrace(t *testing.T) {
	buf := elftest.New().Add(elftest.Segment{Type: 0x99}).Bytes()

	_, err := elf.Decode(buf)
	var de *elf.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Program header 0: Segment type: invalid Segment type 0x99", de.Error())
	assert.Equal(t,
		"Segment type at: 99 00 00 00 00 00 00 00 78 00 00 00 00 00 00 00 00 00 00 00\n"+
			"Program header 0 at: 99 00 00 00 00 00 00 00 78 00 00 00 00 00 00 00 00 00 00 00\n"+
			"error: invalid Segment type 0x99\n",
		de.Trace())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "good")
	buf := elftest.New().WithEntry(0x401000).Add(elftest.Segment{
		Type:  elf.PT_LOAD,
		Flags: elf.PF_R,
		Vaddr: 0x1000,
		Memsz: 3,
		Data:  []byte{1, 2, 3},
	}).Bytes()
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	f, err := elf.Open(path)
	require.NoError(t, err)
	assert.Equal(t, elf.Address(0x401000), f.Entry)
	require.Len(t, f.Progs, 1)
	assert.Equal(t, []byte{1, 2, 3}, f.Progs[0].Data)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = elf.Open(empty)
	var de *elf.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Magic", de.Label())

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(bad, []byte("#!/bin/sh\necho hello\n"), 0o644))
	_, err = elf.Open(bad)
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Magic at: 23 21 2f 62 69 6e 2f 73 68 0a 65 63 68 6f 20 68 65 6c 6c 6f\nerror: unexpected bytes\n", de.Trace())

	_, err = elf.Open(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
