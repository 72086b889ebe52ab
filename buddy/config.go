// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"gopkg.in/yaml.v2"
)

// Config holds the per-owner allocator parameters.
// The zero value is not valid; use [DefaultConfig] or [NewConfig].
type Config struct {
	// PageSize is the size in bytes of a standard page. Must be a power
	// of two, strictly greater than headerSize+minFreeBody.
	PageSize int `yaml:"page_size"`

	// OnDemandAlloc allows allocating new standard pages when the free
	// index has nothing large enough. If false, allocation fails once
	// existing pages are exhausted.
	OnDemandAlloc bool `yaml:"on_demand_alloc"`

	// ExtraAlloc allows serving requests larger than PageSize directly
	// from the system allocator as "extra" blocks.
	ExtraAlloc bool `yaml:"extra_alloc"`

	// FreeAreas enables garbage collection of whole free pages.
	FreeAreas bool `yaml:"free_areas"`

	// KeepFactor is the minimum ratio (>=1) of allocated to in-use
	// standard pages the garbage collector preserves.
	KeepFactor uint `yaml:"keep_factor"`

	// KeepMinimum is the absolute minimum (>=0) of allocated standard
	// pages the garbage collector preserves.
	KeepMinimum uint `yaml:"keep_minimum"`

	logger         log.Logger
	leakTracking   bool
	panicOnOOM     bool
	panicOnCorrupt bool
}

// DefaultConfig returns the allocator's built-in defaults: 1 MiB
// standard pages, on-demand allocation and extra-block support enabled,
// garbage collection enabled with a keep factor of 3 and a floor of 5
// pages.
func DefaultConfig() Config {
	return Config{
		PageSize:      1 << 20,
		OnDemandAlloc: true,
		ExtraAlloc:    true,
		FreeAreas:     true,
		KeepFactor:    3,
		KeepMinimum:   5,
	}
}

// Option configures a Config via functional options.
type Option func(*Config)

// WithPageSize sets the standard page size. Must be a power of two.
func WithPageSize(size int) Option {
	return func(c *Config) { c.PageSize = size }
}

// WithOnDemandAlloc toggles on-demand standard page allocation.
func WithOnDemandAlloc(enabled bool) Option {
	return func(c *Config) { c.OnDemandAlloc = enabled }
}

// WithExtraAlloc toggles support for requests larger than one page.
func WithExtraAlloc(enabled bool) Option {
	return func(c *Config) { c.ExtraAlloc = enabled }
}

// WithFreeAreas toggles garbage collection of whole free standard pages.
func WithFreeAreas(enabled bool) Option {
	return func(c *Config) { c.FreeAreas = enabled }
}

// WithKeepFactor sets the GC's minimum allocated/in-use page ratio.
func WithKeepFactor(factor uint) Option {
	return func(c *Config) { c.KeepFactor = factor }
}

// WithKeepMinimum sets the GC's absolute floor of allocated pages.
func WithKeepMinimum(minimum uint) Option {
	return func(c *Config) { c.KeepMinimum = minimum }
}

// WithLogger attaches a structured logger to the context created from
// this Config. Corruption, double-free, GC and destroy-pending events are
// logged through it.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithLeakTracking enables live-block tracking on contexts created with
// this Config, so the callsite/label passed to AllocAutolabel can be
// reported; the plain allocation methods record no callsite or label.
func WithLeakTracking(enabled bool) Option {
	return func(c *Config) { c.leakTracking = enabled }
}

// WithPanicOnOOM makes the Must* allocator methods panic instead of
// returning ErrOutOfMemory/ErrMalloc.
func WithPanicOnOOM(enabled bool) Option {
	return func(c *Config) { c.panicOnOOM = enabled }
}

// WithPanicOnCorruption makes corruption checks (bad magic number,
// implausible base pointer) panic instead of logging and continuing.
// Off by default: logging and continuing is the safer default for a
// long-running process.
func WithPanicOnCorruption(enabled bool) Option {
	return func(c *Config) { c.panicOnCorrupt = enabled }
}

// NewConfig builds a Config starting from DefaultConfig and applying opts.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (c Config) validate() error {
	if !isPowerOfTwo(c.PageSize) {
		return fmt.Errorf("%w: page_size %d is not a power of two", ErrInvalid, c.PageSize)
	}
	if c.PageSize <= headerSize+minFreeBody {
		return fmt.Errorf("%w: page_size %d too small for header+minimum free body", ErrInvalid, c.PageSize)
	}
	return nil
}

// fileConfig is the on-disk shape accepted by LoadConfig: the six
// allocator parameters that make sense to externally configure.
type fileConfig struct {
	PageSize      int  `yaml:"page_size"`
	OnDemandAlloc bool `yaml:"on_demand_alloc"`
	ExtraAlloc    bool `yaml:"extra_alloc"`
	FreeAreas     bool `yaml:"free_areas"`
	KeepFactor    uint `yaml:"keep_factor"`
	KeepMinimum   uint `yaml:"keep_minimum"`
}

// LoadConfig reads a YAML file holding the six externally configurable
// allocator parameters and returns a Config seeded from DefaultConfig
// with those fields overridden. Logger/leak-tracking/panic policy are
// programmatic concerns and are never read from a file; apply them with
// Option values after loading.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("buddy: reading config %s: %w", path, err)
	}
	var fc fileConfig
	fc.PageSize = DefaultConfig().PageSize
	fc.OnDemandAlloc = true
	fc.ExtraAlloc = true
	fc.FreeAreas = true
	fc.KeepFactor = 3
	fc.KeepMinimum = 5
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("buddy: parsing config %s: %w", path, err)
	}
	cfg := Config{
		PageSize:      fc.PageSize,
		OnDemandAlloc: fc.OnDemandAlloc,
		ExtraAlloc:    fc.ExtraAlloc,
		FreeAreas:     fc.FreeAreas,
		KeepFactor:    fc.KeepFactor,
		KeepMinimum:   fc.KeepMinimum,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
