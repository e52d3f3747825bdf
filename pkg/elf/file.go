// Package elf decodes 64-bit little-endian ELF executables into an owned,
// read-only representation: the file header, every program header, the raw
// bytes of each segment and, for PT_DYNAMIC segments, the dynamic table.
//
// Only x86 and x86-64 machines are accepted. Section headers are located but
// not parsed.
package elf

import (
	"bytes"
	"fmt"
	"strings"
)

// A FileHeader holds the decoded fields of the ELF file header.
type FileHeader struct {
	OSABI     byte
	Type      Type
	Machine   Machine
	Entry     Address
	PhOff     Address
	ShOff     Address
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

// A File is a decoded ELF executable.
type File struct {
	FileHeader
	Progs []*Prog
}

// A Prog is a program header entry together with the segment bytes it
// describes.
type Prog struct {
	Type   ProgType
	Flags  ProgFlag
	Off    Address
	Vaddr  Address
	Paddr  Address
	Filesz Address
	Memsz  Address
	Align  Address

	// Data is a copy of the file bytes at [Off, Off+Filesz).
	Data []byte
	// Contents is the decoded payload. It is Dynamic for PT_DYNAMIC
	// segments and Unknown otherwise.
	Contents Contents
}

// FileRange returns where the segment is stored in the file.
func (p *Prog) FileRange() Range {
	return Range{Start: p.Off, End: p.Off + p.Filesz}
}

// MemRange returns where the segment is mapped in memory.
func (p *Prog) MemRange() Range {
	return Range{Start: p.Vaddr, End: p.Vaddr + p.Memsz}
}

func (p *Prog) String() string {
	return fmt.Sprintf("%v | mem %v | align %v | %v %v",
		p.FileRange(), p.MemRange(), p.Align, p.Flags, p.Type)
}

// Loadable returns the PT_LOAD segments that occupy memory.
func (f *File) Loadable() []*Prog {
	var res []*Prog
	for _, p := range f.Progs {
		if p.Type == PT_LOAD && !p.MemRange().Empty() {
			res = append(res, p)
		}
	}
	return res
}

// Dynamic returns the entries of the first PT_DYNAMIC segment, or nil.
func (f *File) Dynamic() []DynamicEntry {
	for _, p := range f.Progs {
		if d, ok := p.Contents.(Dynamic); ok {
			return d.Entries
		}
	}
	return nil
}

func (f *File) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File { type: %v, machine: %v, entry_point: %v, program_headers: [\n",
		f.Type, f.Machine, f.Entry)
	for _, p := range f.Progs {
		fmt.Fprintf(&sb, "    %v,\n", p)
	}
	sb.WriteString("] }")
	return sb.String()
}

// Decode decodes an ELF file held in data. The returned File does not retain
// data.
func Decode(data []byte) (*File, error) {
	c := newCursor(data)
	hdr, err := decodeHeader(c)
	if err != nil {
		return nil, err
	}
	progs, err := decodeProgs(data, hdr)
	if err != nil {
		return nil, err
	}
	return &File{FileHeader: hdr, Progs: progs}, nil
}

func decodeHeader(c cursor) (FileHeader, error) {
	var (
		h   FileHeader
		err error
	)
	if c, err = c.tag("Magic", magic); err != nil {
		return h, err
	}
	if c, err = c.tag("Class", []byte{ELFCLASS64}); err != nil {
		return h, err
	}
	if c, err = c.tag("Endianness", []byte{ELFDATA2LSB}); err != nil {
		return h, err
	}
	if c, err = c.tag("Version", []byte{EV_CURRENT}); err != nil {
		return h, err
	}
	abi := c
	if c, err = c.oneOf("OS ABI", []byte{ELFOSABI_NONE}, []byte{ELFOSABI_LINUX}); err != nil {
		return h, err
	}
	h.OSABI = abi.rest()[0]
	if c, err = c.skip("Padding", identPadding); err != nil {
		return h, err
	}

	if c, h.Type, err = readEnum[Type](c, "Type", 2); err != nil {
		return h, err
	}
	if c, h.Machine, err = readEnum[Machine](c, "Machine", 2); err != nil {
		return h, err
	}
	// The ident version byte has already been checked; this one must agree.
	next, version, err := c.u32("Version (bis)")
	if err != nil {
		return h, err
	}
	if version != uint32(EV_CURRENT) {
		return h, c.fail("Version (bis)", &InvalidValueError{Field: "Version (bis)", Value: uint64(version)})
	}
	c = next
	if c, h.Entry, err = c.addr("Entry point"); err != nil {
		return h, err
	}

	if c, h.PhOff, err = c.addr("Program header offset"); err != nil {
		return h, err
	}
	if c, h.ShOff, err = c.addr("Section header offset"); err != nil {
		return h, err
	}
	if c, h.Flags, err = c.u32("Flags"); err != nil {
		return h, err
	}
	if c, h.EhSize, err = c.u16("Header size"); err != nil {
		return h, err
	}
	if c, h.PhEntSize, err = c.u16("Program header entry size"); err != nil {
		return h, err
	}
	if c, h.PhNum, err = c.u16("Program header count"); err != nil {
		return h, err
	}
	if c, h.ShEntSize, err = c.u16("Section header entry size"); err != nil {
		return h, err
	}
	if c, h.ShNum, err = c.u16("Section header count"); err != nil {
		return h, err
	}
	if _, h.ShStrNdx, err = c.u16("Section name index"); err != nil {
		return h, err
	}
	return h, nil
}

// decodeProgs decodes exactly hdr.PhNum entries of hdr.PhEntSize bytes each,
// starting at hdr.PhOff in the full file.
func decodeProgs(data []byte, hdr FileHeader) ([]*Prog, error) {
	if hdr.PhNum == 0 {
		return []*Prog{}, nil
	}
	if hdr.PhEntSize == 0 {
		return nil, fail("Program header table", nil, ErrBadEntrySize)
	}
	table, err := slice(data, hdr.PhOff, Address(hdr.PhNum)*Address(hdr.PhEntSize), "Program header table")
	if err != nil {
		return nil, err
	}
	progs := make([]*Prog, 0, hdr.PhNum)
	for i := 0; i < int(hdr.PhNum); i++ {
		chunk := table[i*int(hdr.PhEntSize) : (i+1)*int(hdr.PhEntSize)]
		p, err := decodeProg(data, chunk)
		if err != nil {
			return nil, wrap(err, fmt.Sprintf("Program header %d", i), chunk)
		}
		progs = append(progs, p)
	}
	return progs, nil
}

func decodeProg(data, entry []byte) (*Prog, error) {
	var (
		p   Prog
		err error
	)
	c := newCursor(entry)
	if c, p.Type, err = readEnum[ProgType](c, "Segment type", 4); err != nil {
		return nil, err
	}
	if c, p.Flags, err = readProgFlags(c, "Segment flags"); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		label string
		dst   *Address
	}{
		{"Offset", &p.Off},
		{"Virtual address", &p.Vaddr},
		{"Physical address", &p.Paddr},
		{"File size", &p.Filesz},
		{"Memory size", &p.Memsz},
		{"Alignment", &p.Align},
	} {
		if c, *f.dst, err = c.addr(f.label); err != nil {
			return nil, err
		}
	}

	// The segment bytes come from the full file, not from the entry.
	raw, err := slice(data, p.Off, p.Filesz, "Segment data")
	if err != nil {
		return nil, err
	}
	p.Data = bytes.Clone(raw)

	switch p.Type {
	case PT_DYNAMIC:
		entries, err := decodeDynamic(raw)
		if err != nil {
			return nil, wrap(err, "Dynamic table", raw)
		}
		p.Contents = Dynamic{Entries: entries}
	default:
		p.Contents = Unknown{}
	}
	return &p, nil
}

// slice returns data[off:off+n] after checking that the range lies inside
// data.
func slice(data []byte, off, n Address, label string) ([]byte, error) {
	end, ok := off.CheckedAdd(n)
	if !ok || end > Address(len(data)) {
		var at []byte
		if off < Address(len(data)) {
			at = data[off:]
		}
		return nil, fail(label, at, fmt.Errorf("%w: [%v, +%v) in %d byte file", ErrOutOfBounds, off, n, len(data)))
	}
	return data[off:end], nil
}
