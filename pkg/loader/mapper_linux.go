//go:build linux

package loader

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/grafana/elfload/pkg/elf"
)

// DefaultMapper returns the mapper backed by mmap(2).
func DefaultMapper() Mapper {
	return unixMapper{}
}

type unixMapper struct{}

func (unixMapper) PageSize() int {
	return unix.Getpagesize()
}

func (unixMapper) Map(addr elf.Address, length int) ([]byte, error) {
	if length <= 0 {
		return nil, errors.Errorf("invalid mapping length %d", length)
	}
	// MAP_FIXED_NOREPLACE never clobbers memory the Go runtime owns. Kernels
	// older than 4.17 treat it as a hint, hence the address check.
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(addr.Uintptr()), uintptr(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED_NOREPLACE)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			err = ErrAddressInUse
		}
		return nil, errors.Wrapf(err, "mmap %v (%#x bytes)", addr, length)
	}
	if uintptr(p) != addr.Uintptr() {
		_ = unix.MunmapPtr(p, uintptr(length))
		return nil, errors.Wrapf(ErrAddressInUse, "mmap %v: kernel placed mapping at %#x", addr, uintptr(p))
	}
	return unsafe.Slice((*byte)(p), length), nil
}

func (unixMapper) Protect(mem []byte, prot Prot) error {
	var p int
	if prot&Read != 0 {
		p |= unix.PROT_READ
	}
	if prot&Write != 0 {
		p |= unix.PROT_WRITE
	}
	if prot&Exec != 0 {
		p |= unix.PROT_EXEC
	}
	if err := unix.Mprotect(mem, p); err != nil {
		return errors.Wrapf(err, "mprotect %#x (%#x bytes) %v", uintptr(unsafe.Pointer(unsafe.SliceData(mem))), len(mem), prot)
	}
	return nil
}

func (unixMapper) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.MunmapPtr(unsafe.Pointer(unsafe.SliceData(mem)), uintptr(len(mem))); err != nil {
		return errors.Wrapf(err, "munmap %#x (%#x bytes)", uintptr(unsafe.Pointer(unsafe.SliceData(mem))), len(mem))
	}
	return nil
}
