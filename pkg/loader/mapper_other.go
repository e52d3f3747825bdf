//go:build !linux

package loader

import (
	"os"

	"github.com/grafana/elfload/pkg/elf"
)

// DefaultMapper returns a mapper that refuses every request.
func DefaultMapper() Mapper {
	return unsupportedMapper{}
}

type unsupportedMapper struct{}

func (unsupportedMapper) PageSize() int { return os.Getpagesize() }

func (unsupportedMapper) Map(elf.Address, int) ([]byte, error) { return nil, ErrUnsupported }

func (unsupportedMapper) Protect([]byte, Prot) error { return ErrUnsupported }

func (unsupportedMapper) Unmap([]byte) error { return ErrUnsupported }
