package loader

import (
	"errors"
	"fmt"

	"github.com/grafana/elfload/pkg/elf"
)

var (
	ErrUnsupported        = errors.New("fixed address mappings are not supported on this platform")
	ErrJumpUnsupported    = errors.New("transferring control is not supported on this platform")
	ErrAddressInUse       = errors.New("address range is already mapped")
	ErrClosed             = errors.New("image is closed")
	ErrEntryNotExecutable = errors.New("entry point is not inside an executable segment")
	ErrSizeMismatch       = errors.New("segment file size exceeds memory size")
	ErrOverflow           = errors.New("address overflows")
	ErrVerify             = errors.New("mapped bytes differ from segment data")
)

// Op names the step of loading that failed.
type Op string

const (
	OpValidate Op = "validate"
	OpMap      Op = "map"
	OpCopy     Op = "copy"
	OpProtect  Op = "protect"
	OpJump     Op = "jump"
)

// A LoadError reports which step failed for which segment.
type LoadError struct {
	Op Op
	// Segment is the program header index, or -1 when the failure is not
	// tied to a segment.
	Segment int
	Addr    elf.Address
	Len     int
	Err     error
}

func (e *LoadError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("%s at %v: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s segment %d at %v (%#x bytes): %v", e.Op, e.Segment, e.Addr, e.Len, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// A ReturnedError is reported when the loaded program returns instead of
// exiting the process.
type ReturnedError struct {
	Code int
}

func (e *ReturnedError) Error() string {
	return fmt.Sprintf("loaded program returned %d", e.Code)
}
