// Package elftest builds small synthetic ELF images for tests.
package elftest

import (
	"encoding/binary"

	"github.com/grafana/elfload/pkg/elf"
)

// Offsets of file header fields that tests like to patch.
const (
	OffOSABI     = 7
	OffType      = 16
	OffMachine   = 18
	OffVersion   = 20
	OffEntry     = 24
	OffPhOff     = 32
	OffPhEntSize = 54
	OffPhNum     = 56

	HeaderSize     = 64
	ProgHeaderSize = 56
)

// A Segment describes one program header and the bytes it covers.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr elf.Address
	Paddr elf.Address
	Memsz elf.Address
	Align elf.Address
	Data  []byte

	// Off and Filesz are derived from the layout unless set here.
	Off    *elf.Address
	Filesz *elf.Address
}

// A Builder lays out a file header, a program header table directly after it,
// and the segment data after the table.
type Builder struct {
	OSABI    byte
	Type     elf.Type
	Machine  elf.Machine
	Entry    elf.Address
	Segments []Segment
}

// New returns a builder for an x86-64 executable.
func New() *Builder {
	return &Builder{
		OSABI:   elf.ELFOSABI_NONE,
		Type:    elf.ET_EXEC,
		Machine: elf.EM_X86_64,
	}
}

// WithEntry sets the entry point.
func (b *Builder) WithEntry(a elf.Address) *Builder {
	b.Entry = a
	return b
}

// Add appends a segment.
func (b *Builder) Add(s Segment) *Builder {
	b.Segments = append(b.Segments, s)
	return b
}

// Bytes encodes the image.
func (b *Builder) Bytes() []byte {
	le := binary.LittleEndian
	phoff := HeaderSize
	dataOff := phoff + len(b.Segments)*ProgHeaderSize

	buf := make([]byte, dataOff)
	copy(buf, []byte{0x7f, 'E', 'L', 'F', elf.ELFCLASS64, elf.ELFDATA2LSB, elf.EV_CURRENT, b.OSABI})
	le.PutUint16(buf[OffType:], uint16(b.Type))
	le.PutUint16(buf[OffMachine:], uint16(b.Machine))
	le.PutUint32(buf[OffVersion:], 1)
	le.PutUint64(buf[OffEntry:], uint64(b.Entry))
	le.PutUint64(buf[OffPhOff:], uint64(phoff))
	le.PutUint16(buf[52:], HeaderSize)
	le.PutUint16(buf[OffPhEntSize:], ProgHeaderSize)
	le.PutUint16(buf[OffPhNum:], uint16(len(b.Segments)))

	for i, s := range b.Segments {
		off := elf.Address(len(buf))
		if s.Off != nil {
			off = *s.Off
		}
		filesz := elf.Address(len(s.Data))
		if s.Filesz != nil {
			filesz = *s.Filesz
		}
		buf = append(buf, s.Data...)

		ph := buf[phoff+i*ProgHeaderSize:]
		le.PutUint32(ph[0:], uint32(s.Type))
		le.PutUint32(ph[4:], uint32(s.Flags))
		le.PutUint64(ph[8:], uint64(off))
		le.PutUint64(ph[16:], uint64(s.Vaddr))
		le.PutUint64(ph[24:], uint64(s.Paddr))
		le.PutUint64(ph[32:], uint64(filesz))
		le.PutUint64(ph[40:], uint64(s.Memsz))
		le.PutUint64(ph[48:], uint64(s.Align))
	}
	return buf
}

// DynamicTable encodes entries as a dynamic table. No terminator is added.
func DynamicTable(entries ...elf.DynamicEntry) []byte {
	buf := make([]byte, 16*len(entries))
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*16:], uint64(e.Tag))
		binary.LittleEndian.PutUint64(buf[i*16+8:], uint64(e.Val))
	}
	return buf
}

// Addr returns a pointer to a, for the optional Segment fields.
func Addr(a elf.Address) *elf.Address {
	return &a
}
