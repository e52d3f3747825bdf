package loader

import (
	"strings"

	"github.com/grafana/elfload/pkg/elf"
)

// A Prot is a set of memory access permissions.
type Prot uint8

const (
	Read Prot = 1 << iota
	Write
	Exec
)

func (p Prot) String() string {
	var a [3]string
	b := a[:0]
	if p&Read != 0 {
		b = append(b, "Read")
	}
	if p&Write != 0 {
		b = append(b, "Write")
	}
	if p&Exec != 0 {
		b = append(b, "Exec")
	}
	if len(b) == 0 {
		b = append(b, "None")
	}
	return strings.Join(b, "|")
}

// ProtFromFlags translates segment flags into memory permissions.
func ProtFromFlags(f elf.ProgFlag) Prot {
	var p Prot
	if f.Has(elf.PF_R) {
		p |= Read
	}
	if f.Has(elf.PF_W) {
		p |= Write
	}
	if f.Has(elf.PF_X) {
		p |= Exec
	}
	return p
}

// A Mapper creates and manages anonymous memory at fixed addresses.
type Mapper interface {
	// PageSize returns the granularity of mappings.
	PageSize() int
	// Map reserves length bytes at exactly addr, readable and writable.
	// It must fail rather than return memory anywhere else.
	Map(addr elf.Address, length int) ([]byte, error)
	// Protect sets the permissions of a region returned by Map.
	Protect(mem []byte, prot Prot) error
	// Unmap releases a region returned by Map.
	Unmap(mem []byte) error
}

// A Mapping is the memory backing one loaded segment.
type Mapping struct {
	// Segment is the index of the program header in the file.
	Segment int
	// Range covers the whole mapping, starting at the page boundary below
	// the segment's target address.
	Range elf.Range
	// Padding is the distance from Range.Start to the segment's first byte.
	Padding int
	Prot    Prot

	mem []byte
}

// Bytes returns the mapped memory. Reading it is only safe while the mapping
// is readable.
func (m *Mapping) Bytes() []byte {
	return m.mem
}

// Target returns the address of the segment's first byte.
func (m *Mapping) Target() elf.Address {
	return m.Range.Start + elf.Address(m.Padding)
}
