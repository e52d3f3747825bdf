package loader

import (
	"fmt"

	"github.com/grafana/elfload/pkg/elf"
)

// DefaultBase is where segments are placed unless configured otherwise.
const DefaultBase elf.Address = 0x400000

type Config struct {
	// Base is added to every segment address and to the entry point. It
	// need not be page aligned; each target is aligned on its own.
	Base elf.Address
	// PageSize overrides the mapper's page size when non-zero.
	PageSize int
	// Verify compares the mapped bytes with the segment data before
	// permissions are applied.
	Verify bool
}

func DefaultConfig() Config {
	return Config{Base: DefaultBase}
}

func (cfg *Config) Validate() error {
	if cfg.PageSize < 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", cfg.PageSize)
	}
	return nil
}
