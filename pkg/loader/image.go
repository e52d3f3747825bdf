package loader

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/grafana/elfload/pkg/elf"
)

// An Image is a set of loaded segments ready to run.
type Image struct {
	Base elf.Address
	// Entry is the absolute entry point, Base plus the file's entry.
	Entry    elf.Address
	Mappings []*Mapping

	mapper Mapper
	logger log.Logger
	closed bool
}

// Jump transfers control to the entry point. Programs built to run standalone
// exit the process and Jump never returns; otherwise it reports the value the
// code returned.
func (img *Image) Jump() (int, error) {
	if img.closed {
		return 0, &LoadError{Op: OpJump, Segment: -1, Addr: img.Entry, Err: ErrClosed}
	}
	m, ok := lo.Find(img.Mappings, func(m *Mapping) bool {
		return m.Prot&Exec != 0 && m.Range.Contains(img.Entry)
	})
	if !ok {
		return 0, &LoadError{Op: OpJump, Segment: -1, Addr: img.Entry, Err: ErrEntryNotExecutable}
	}

	level.Info(img.logger).Log("msg", "jumping to entry point", "entry", img.Entry, "segment", m.Segment)
	code, err := jump(img.Entry.Uintptr())
	if err != nil {
		return 0, &LoadError{Op: OpJump, Segment: m.Segment, Addr: img.Entry, Err: err}
	}
	return code, nil
}

// Close unmaps every segment. It is safe to call more than once.
func (img *Image) Close() error {
	if img.closed {
		return nil
	}
	img.closed = true

	var result *multierror.Error
	for i := len(img.Mappings) - 1; i >= 0; i-- {
		m := img.Mappings[i]
		if err := img.mapper.Unmap(m.mem); err != nil {
			result = multierror.Append(result, err)
		}
	}
	img.Mappings = nil
	return result.ErrorOrNil()
}
