// Package config holds the per-invocation settings of a conversion run.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/nikandfor/errors"
	"gopkg.in/yaml.v3"
)

// Config is threaded through every stage of a run. There is no global
// state: two runs with different configs never observe each other.
type Config struct {
	// Trace enables debug logging of every stage.
	Trace bool `yaml:"trace"`
	// Workers bounds the procedures converted concurrently by a batch run.
	// Zero or less means one worker per CPU.
	Workers int `yaml:"workers"`
	// DotDir, when set, receives Graphviz files for every procedure.
	DotDir string `yaml:"dot_dir"`
	// Print echoes the compacted IR of every procedure.
	Print bool `yaml:"print"`
	// LogFormat is "text" (default) or "json".
	LogFormat string `yaml:"log_format"`

	logOutput io.Writer
	logger    *slog.Logger
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Workers: runtime.NumCPU(), LogFormat: "text"}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	conf, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrap(err, "%s", path)
	}
	return conf, nil
}

// Parse decodes YAML configuration on top of the defaults. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	conf := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate reports settings that cannot be honored.
func (c Config) Validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return errors.New("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// WorkerCount returns the effective number of batch workers.
func (c Config) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// WithLogger returns a copy of c that logs to l regardless of Trace.
func (c Config) WithLogger(l *slog.Logger) Config {
	c.logger = l
	return c
}

// WithLogOutput returns a copy of c whose trace logger writes to w.
func (c Config) WithLogOutput(w io.Writer) Config {
	c.logOutput = w
	return c
}

// Logger returns the logger stages report through. Without Trace and
// without an explicit logger, everything is discarded.
func (c Config) Logger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	if !c.Trace {
		return slog.New(slog.DiscardHandler)
	}
	out := c.logOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
