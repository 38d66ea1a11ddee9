package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultMaxCacheSize = 100

// Options passed to NewCacheService
//
// EnableValueCache: memoize GetValue results. Disabled unless set
// EnableFormStateCache: memoize GetFormState results. Disabled unless set
// MaxCacheSize: entry bound applied to each cache independently. 0 selects
// DefaultMaxCacheSize, negative values are clamped to 1
type Options struct {
	EnableValueCache     bool `yaml:"enable_value_cache"`
	EnableFormStateCache bool `yaml:"enable_form_state_cache"`
	MaxCacheSize         int  `yaml:"max_cache_size"`

	Logger         *zap.Logger          `yaml:"-"`
	MeterProvider  metric.MeterProvider `yaml:"-"`
	TracerProvider trace.TracerProvider `yaml:"-"`
}

// DefaultOptions enables both caches with DefaultMaxCacheSize entries each.
func DefaultOptions() *Options {
	return &Options{
		EnableValueCache:     true,
		EnableFormStateCache: true,
		MaxCacheSize:         DefaultMaxCacheSize,
	}
}

func (o *Options) GetMaxCacheSize() int {
	switch {
	case o.MaxCacheSize == 0:
		return DefaultMaxCacheSize
	case o.MaxCacheSize < 0:
		return 1
	default:
		return o.MaxCacheSize
	}
}

func (o *Options) GetLogger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// LoadOptions parses YAML encoded options. Unknown fields are rejected and
// an empty document yields zero options.
func LoadOptions(data []byte) (*Options, error) {
	options := &Options{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(options); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return options, nil
}

func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cache: read options file: %w", err)
	}
	return LoadOptions(data)
}
