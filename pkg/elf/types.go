package elf

import (
	"strconv"
	"strings"
)

// Identification bytes accepted by the decoder.
const (
	ELFCLASS64  byte = 2
	ELFDATA2LSB byte = 1
	EV_CURRENT  byte = 1

	ELFOSABI_NONE  byte = 0
	ELFOSABI_LINUX byte = 3
)

var magic = []byte{0x7f, 'E', 'L', 'F'}

const (
	dynEntrySize = 16
	identPadding = 8
)

type intName struct {
	i uint64
	s string
}

func stringName(i uint64, names []intName, prefix string) string {
	for _, n := range names {
		if n.i == i {
			return n.s
		}
	}
	return prefix + "(0x" + strconv.FormatUint(i, 16) + ")"
}

func validName(i uint64, names []intName) bool {
	for _, n := range names {
		if n.i == i {
			return true
		}
	}
	return false
}

// Type is the object file type.
type Type uint16

const (
	ET_NONE Type = 0
	ET_REL  Type = 1
	ET_EXEC Type = 2
	ET_DYN  Type = 3
	ET_CORE Type = 4
)

var typeStrings = []intName{
	{0, "ET_NONE"},
	{1, "ET_REL"},
	{2, "ET_EXEC"},
	{3, "ET_DYN"},
	{4, "ET_CORE"},
}

func (t Type) String() string { return stringName(uint64(t), typeStrings, "Type") }
func (t Type) Valid() bool    { return validName(uint64(t), typeStrings) }

// Machine is the target architecture. Only the two x86 flavours are
// supported.
type Machine uint16

const (
	EM_386    Machine = 0x03
	EM_X86_64 Machine = 0x3e
)

var machineStrings = []intName{
	{0x03, "EM_386"},
	{0x3e, "EM_X86_64"},
}

func (m Machine) String() string { return stringName(uint64(m), machineStrings, "Machine") }
func (m Machine) Valid() bool    { return validName(uint64(m), machineStrings) }

// ProgType is the purpose of a program header entry.
type ProgType uint32

const (
	PT_NULL         ProgType = 0x0
	PT_LOAD         ProgType = 0x1
	PT_DYNAMIC      ProgType = 0x2
	PT_INTERP       ProgType = 0x3
	PT_NOTE         ProgType = 0x4
	PT_SHLIB        ProgType = 0x5
	PT_PHDR         ProgType = 0x6
	PT_LOPROC       ProgType = 0x7
	PT_HIPROC       ProgType = 0x8
	PT_GNU_EH_FRAME ProgType = 0x6474e550
	PT_GNU_STACK    ProgType = 0x6474e551
	PT_GNU_RELRO    ProgType = 0x6474e552
	PT_GNU_PROPERTY ProgType = 0x6474e553
)

var progTypeStrings = []intName{
	{0x0, "PT_NULL"},
	{0x1, "PT_LOAD"},
	{0x2, "PT_DYNAMIC"},
	{0x3, "PT_INTERP"},
	{0x4, "PT_NOTE"},
	{0x5, "PT_SHLIB"},
	{0x6, "PT_PHDR"},
	{0x7, "PT_LOPROC"},
	{0x8, "PT_HIPROC"},
	{0x6474e550, "PT_GNU_EH_FRAME"},
	{0x6474e551, "PT_GNU_STACK"},
	{0x6474e552, "PT_GNU_RELRO"},
	{0x6474e553, "PT_GNU_PROPERTY"},
}

func (t ProgType) String() string { return stringName(uint64(t), progTypeStrings, "ProgType") }
func (t ProgType) Valid() bool    { return validName(uint64(t), progTypeStrings) }

// ProgFlag is the permission bit set of a segment.
type ProgFlag uint32

const (
	PF_X ProgFlag = 0x1
	PF_W ProgFlag = 0x2
	PF_R ProgFlag = 0x4

	knownProgFlags = PF_X | PF_W | PF_R
)

// Has reports whether all bits of f2 are set in f.
func (f ProgFlag) Has(f2 ProgFlag) bool {
	return f&f2 == f2
}

// Bits returns the raw flag word.
func (f ProgFlag) Bits() uint32 {
	return uint32(f)
}

// String renders the flags as RWX letters, with '.' for missing bits.
func (f ProgFlag) String() string {
	var sb strings.Builder
	for _, fl := range []struct {
		flag   ProgFlag
		letter byte
	}{{PF_R, 'R'}, {PF_W, 'W'}, {PF_X, 'X'}} {
		if f.Has(fl.flag) {
			sb.WriteByte(fl.letter)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// ProgFlagFromBits converts a raw flag word, rejecting unknown bits.
func ProgFlagFromBits(v uint32) (ProgFlag, error) {
	if unknown := ProgFlag(v) &^ knownProgFlags; unknown != 0 {
		return 0, &InvalidFlagsError{Value: v, Unknown: uint32(unknown)}
	}
	return ProgFlag(v), nil
}

// DynTag is the tag of a dynamic table entry.
type DynTag uint64

const (
	DT_NULL            DynTag = 0
	DT_NEEDED          DynTag = 1
	DT_PLTRELSZ        DynTag = 2
	DT_PLTGOT          DynTag = 3
	DT_HASH            DynTag = 4
	DT_STRTAB          DynTag = 5
	DT_SYMTAB          DynTag = 6
	DT_RELA            DynTag = 7
	DT_RELASZ          DynTag = 8
	DT_RELAENT         DynTag = 9
	DT_STRSZ           DynTag = 10
	DT_SYMENT          DynTag = 11
	DT_INIT            DynTag = 12
	DT_FINI            DynTag = 13
	DT_SONAME          DynTag = 14
	DT_RPATH           DynTag = 15
	DT_SYMBOLIC        DynTag = 16
	DT_REL             DynTag = 17
	DT_RELSZ           DynTag = 18
	DT_RELENT          DynTag = 19
	DT_PLTREL          DynTag = 20
	DT_DEBUG           DynTag = 21
	DT_TEXTREL         DynTag = 22
	DT_JMPREL          DynTag = 23
	DT_BIND_NOW        DynTag = 24
	DT_INIT_ARRAY      DynTag = 25
	DT_FINI_ARRAY      DynTag = 26
	DT_INIT_ARRAYSZ    DynTag = 27
	DT_FINI_ARRAYSZ    DynTag = 28
	DT_RUNPATH         DynTag = 29
	DT_FLAGS           DynTag = 30
	DT_PREINIT_ARRAY   DynTag = 32
	DT_PREINIT_ARRAYSZ DynTag = 33
	DT_SYMTAB_SHNDX    DynTag = 34
	DT_LOOS            DynTag = 0x6000000d
	DT_GNU_HASH        DynTag = 0x6ffffef5
	DT_VERSYM          DynTag = 0x6ffffff0
	DT_RELACOUNT       DynTag = 0x6ffffff9
	DT_RELCOUNT        DynTag = 0x6ffffffa
	DT_FLAGS_1         DynTag = 0x6ffffffb
	DT_VERDEF          DynTag = 0x6ffffffc
	DT_VERDEFNUM       DynTag = 0x6ffffffd
	DT_VERNEED         DynTag = 0x6ffffffe
	DT_VERNEEDNUM      DynTag = 0x6fffffff
	DT_HIOS            DynTag = 0x6ffff000
	DT_LOPROC          DynTag = 0x70000000
	DT_HIPROC          DynTag = 0x7fffffff
)

var dtStrings = []intName{
	{0, "DT_NULL"},
	{1, "DT_NEEDED"},
	{2, "DT_PLTRELSZ"},
	{3, "DT_PLTGOT"},
	{4, "DT_HASH"},
	{5, "DT_STRTAB"},
	{6, "DT_SYMTAB"},
	{7, "DT_RELA"},
	{8, "DT_RELASZ"},
	{9, "DT_RELAENT"},
	{10, "DT_STRSZ"},
	{11, "DT_SYMENT"},
	{12, "DT_INIT"},
	{13, "DT_FINI"},
	{14, "DT_SONAME"},
	{15, "DT_RPATH"},
	{16, "DT_SYMBOLIC"},
	{17, "DT_REL"},
	{18, "DT_RELSZ"},
	{19, "DT_RELENT"},
	{20, "DT_PLTREL"},
	{21, "DT_DEBUG"},
	{22, "DT_TEXTREL"},
	{23, "DT_JMPREL"},
	{24, "DT_BIND_NOW"},
	{25, "DT_INIT_ARRAY"},
	{26, "DT_FINI_ARRAY"},
	{27, "DT_INIT_ARRAYSZ"},
	{28, "DT_FINI_ARRAYSZ"},
	{29, "DT_RUNPATH"},
	{30, "DT_FLAGS"},
	{32, "DT_PREINIT_ARRAY"},
	{33, "DT_PREINIT_ARRAYSZ"},
	{34, "DT_SYMTAB_SHNDX"},
	{0x6000000d, "DT_LOOS"},
	{0x6ffff000, "DT_HIOS"},
	{0x6ffffef5, "DT_GNU_HASH"},
	{0x6ffffff0, "DT_VERSYM"},
	{0x6ffffff9, "DT_RELACOUNT"},
	{0x6ffffffa, "DT_RELCOUNT"},
	{0x6ffffffb, "DT_FLAGS_1"},
	{0x6ffffffc, "DT_VERDEF"},
	{0x6ffffffd, "DT_VERDEFNUM"},
	{0x6ffffffe, "DT_VERNEED"},
	{0x6fffffff, "DT_VERNEEDNUM"},
	{0x70000000, "DT_LOPROC"},
	{0x7fffffff, "DT_HIPROC"},
}

func (t DynTag) String() string { return stringName(uint64(t), dtStrings, "DynTag") }
func (t DynTag) Valid() bool    { return validName(uint64(t), dtStrings) }
