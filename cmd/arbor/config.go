package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jward/arbor"
)

// Config is the on-disk CLI configuration, conventionally at .arbor.yml in
// the project root. Every field has a usable default; the file is optional.
type Config struct {
	CacheRoot   string               `yaml:"cache_root"`
	IndexPath   string               `yaml:"index_path"`
	Parallelism int                  `yaml:"parallelism"`
	Compression *bool                `yaml:"compression"`
	Languages   []string             `yaml:"languages"`
	Extensions  []string             `yaml:"extensions"`
	Context     arbor.CompileContext `yaml:"compile_context"`
}

func defaultConfig() Config {
	return Config{
		CacheRoot:   ".arbor/cache",
		IndexPath:   ".arbor/symbols.db",
		Parallelism: 4,
		Extensions:  []string{".c", ".h", ".cpp", ".cc", ".cxx", ".hpp", ".hh", ".go", ".py"},
	}
}

// loadConfig reads path if it exists and overlays it on the defaults. A
// missing file is fine; a malformed one is not.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = ".arbor/cache"
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = ".arbor/symbols.db"
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = defaultConfig().Extensions
	}
	return cfg, nil
}

// builderOptions translates the config into engine options.
func (c Config) builderOptions() []arbor.BuilderOption {
	opts := []arbor.BuilderOption{arbor.WithParallelism(c.Parallelism)}
	if c.Compression != nil {
		opts = append(opts, arbor.WithCompression(*c.Compression))
	}
	if len(c.Languages) > 0 {
		opts = append(opts, arbor.WithLanguages(c.Languages...))
	}
	return opts
}
