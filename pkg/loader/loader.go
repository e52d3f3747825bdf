// Package loader places the loadable segments of a decoded ELF file at a fixed
// base address in the current process, applies their permissions and
// transfers control to the entry point.
//
// Mappings are created with MAP_FIXED_NOREPLACE, so a segment that would land
// on memory the process already uses fails to load instead of overwriting it.
package loader

import (
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/grafana/elfload/pkg/elf"
)

type Option func(*Loader)

// WithMapper replaces the mmap based mapper.
func WithMapper(m Mapper) Option {
	return func(l *Loader) {
		l.mapper = m
	}
}

type Loader struct {
	cfg     Config
	logger  log.Logger
	metrics *Metrics
	mapper  Mapper

	// Loading mutates the address space of the whole process.
	mu sync.Mutex
}

func New(cfg Config, logger log.Logger, reg prometheus.Registerer, opts ...Option) (*Loader, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	l := &Loader{
		cfg:     cfg,
		logger:  log.With(logger, "component", "loader"),
		metrics: NewMetrics(reg),
		mapper:  DefaultMapper(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.cfg.PageSize == 0 {
		l.cfg.PageSize = l.mapper.PageSize()
	}
	if l.cfg.PageSize == 0 {
		return nil, fmt.Errorf("unknown page size")
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Config returns the configuration in effect, with the page size resolved.
func (l *Loader) Config() Config {
	return l.cfg
}

// Load maps every non-empty PT_LOAD segment of f at Base+Vaddr. On failure all
// mappings created by this call are released again.
func (l *Loader) Load(f *elf.File) (*Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.cfg.Base.CheckedAdd(f.Entry)
	if !ok {
		return nil, l.failed(&LoadError{Op: OpValidate, Segment: -1, Addr: f.Entry, Err: ErrOverflow})
	}
	img := &Image{
		Base:   l.cfg.Base,
		Entry:  entry,
		mapper: l.mapper,
		logger: l.logger,
	}

	loadable := lo.Filter(lo.Range(len(f.Progs)), func(i int, _ int) bool {
		p := f.Progs[i]
		return p.Type == elf.PT_LOAD && !p.MemRange().Empty()
	})
	for _, i := range loadable {
		m, err := l.loadSegment(i, f.Progs[i])
		if err != nil {
			if cerr := img.Close(); cerr != nil {
				level.Warn(l.logger).Log("msg", "failed to release partially loaded image", "err", cerr)
			}
			return nil, l.failed(err)
		}
		img.Mappings = append(img.Mappings, m)
	}

	level.Debug(l.logger).Log("msg", "image loaded", "segments", len(img.Mappings), "base", img.Base, "entry", img.Entry)
	return img, nil
}

// LoadAndRun loads f and jumps to its entry point. It only returns if loading
// fails or the loaded code returns, in which case the error is a
// *ReturnedError.
func (l *Loader) LoadAndRun(f *elf.File) error {
	img, err := l.Load(f)
	if err != nil {
		return err
	}
	code, err := img.Jump()
	if cerr := img.Close(); cerr != nil {
		level.Warn(l.logger).Log("msg", "failed to release image", "err", cerr)
	}
	if err != nil {
		return err
	}
	return &ReturnedError{Code: code}
}

func (l *Loader) loadSegment(i int, p *elf.Prog) (*Mapping, *LoadError) {
	fail := func(op Op, addr elf.Address, n int, err error) *LoadError {
		return &LoadError{Op: op, Segment: i, Addr: addr, Len: n, Err: err}
	}

	if p.Filesz > p.Memsz {
		return nil, fail(OpValidate, p.Vaddr, 0, fmt.Errorf("%w: %#x > %#x", ErrSizeMismatch, uint64(p.Filesz), uint64(p.Memsz)))
	}
	if elf.Address(len(p.Data)) != p.Filesz {
		return nil, fail(OpValidate, p.Vaddr, 0, fmt.Errorf("segment holds %d bytes, file size is %#x", len(p.Data), uint64(p.Filesz)))
	}
	target, ok := l.cfg.Base.CheckedAdd(p.Vaddr)
	if !ok {
		return nil, fail(OpValidate, p.Vaddr, 0, ErrOverflow)
	}
	if _, ok := target.CheckedAdd(p.Memsz); !ok {
		return nil, fail(OpValidate, target, 0, ErrOverflow)
	}
	aligned := target.AlignDown(uint64(l.cfg.PageSize))
	padding := int(target.Sub(aligned))
	length, ok := (p.Memsz + elf.Address(padding)).Int()
	if !ok {
		return nil, fail(OpValidate, target, 0, ErrOverflow)
	}

	prot := ProtFromFlags(p.Flags)
	logger := log.With(l.logger, "segment", i)
	level.Debug(logger).Log(
		"msg", "mapping segment",
		"range", elf.Range{Start: aligned, End: aligned + elf.Address(length)},
		"target", target,
		"padding", padding,
		"prot", prot,
	)

	mem, err := l.mapper.Map(aligned, length)
	if err != nil {
		return nil, fail(OpMap, aligned, length, err)
	}
	m := &Mapping{
		Segment: i,
		Range:   elf.Range{Start: aligned, End: aligned + elf.Address(length)},
		Padding: padding,
		Prot:    prot,
		mem:     mem,
	}
	if err := l.fill(m, p); err != nil {
		l.release(logger, m)
		return nil, fail(OpCopy, target, length, err)
	}
	if err := l.mapper.Protect(mem, prot); err != nil {
		l.release(logger, m)
		return nil, fail(OpProtect, aligned, length, err)
	}

	l.metrics.SegmentsMapped.WithLabelValues(prot.String()).Inc()
	l.metrics.MappedBytes.Add(float64(length))
	l.metrics.BytesCopied.Add(float64(len(p.Data)))
	return m, nil
}

// fill copies the segment data behind the padding and zeroes everything else.
func (l *Loader) fill(m *Mapping, p *elf.Prog) error {
	if want := m.Padding + int(p.Memsz); len(m.mem) != want {
		return fmt.Errorf("mapper returned %d bytes, want %d", len(m.mem), want)
	}
	clear(m.mem[:m.Padding])
	dst := m.mem[m.Padding:]
	n := copy(dst, p.Data)
	clear(dst[n:])
	if l.cfg.Verify && string(dst[:n]) != string(p.Data) {
		return ErrVerify
	}
	return nil
}

func (l *Loader) failed(err *LoadError) error {
	l.metrics.LoadFailures.WithLabelValues(string(err.Op)).Inc()
	level.Debug(l.logger).Log("msg", "load failed", "op", err.Op, "segment", err.Segment, "err", err.Err)
	return err
}

func (l *Loader) release(logger log.Logger, m *Mapping) {
	if err := l.mapper.Unmap(m.mem); err != nil {
		level.Warn(logger).Log("msg", "failed to unmap segment", "range", m.Range, "err", err)
	}
}
