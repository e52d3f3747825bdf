//go:build linux

package loader

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/elfload/pkg/elf"
	"github.com/grafana/elfload/pkg/elf/elftest"
)

// Far away from the Go heap and the usual mmap area.
const testBase elf.Address = 0x2000_0000_0000

func TestUnixMapperLoad(t *testing.T) {
	buf := elftest.New().WithEntry(0x1234).Add(elftest.Segment{
		Type:  elf.PT_LOAD,
		Flags: elf.PF_R,
		Vaddr: 0x1234,
		Memsz: 0x2000,
		Align: 0x1000,
		Data:  []byte("hello, segment"),
	}).Bytes()
	f, err := elf.Decode(buf)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Base = testBase
	cfg.Verify = true
	l, err := New(cfg, log.NewNopLogger(), nil)
	require.NoError(t, err)
	page := elf.Address(l.Config().PageSize)

	img, err := l.Load(f)
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Mappings, 1)
	m := img.Mappings[0]
	target := testBase + 0x1234
	assert.Equal(t, target.AlignDown(uint64(page)), m.Range.Start)
	assert.Equal(t, target, m.Target())

	mem := m.Bytes()
	assert.Equal(t, "hello, segment", string(mem[m.Padding:m.Padding+14]))
	assert.Equal(t, make([]byte, 0x2000-14), mem[m.Padding+14:])

	// A second load would land on the same pages.
	_, err = l.Load(f)
	require.ErrorIs(t, err, ErrAddressInUse)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, OpMap, le.Op)

	require.NoError(t, img.Close())

	// Once released the range is free again.
	img, err = l.Load(f)
	require.NoError(t, err)
	require.NoError(t, img.Close())
}

func TestUnixMapperRejectsZeroLength(t *testing.T) {
	_, err := DefaultMapper().Map(testBase, 0)
	require.Error(t, err)
}
