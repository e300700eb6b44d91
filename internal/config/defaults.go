package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storybox/internal/common/fsutil"
	"storybox/internal/hw"
)

// Defaults match the stock appliance image.
const (
	DefaultModelPath     = "/data/stories15M_q80.bin"
	DefaultTokenizerPath = "/data/tokenizer.bin"
	DefaultEngine        = "llama2c"
	DefaultTemperature   = 1.0
	DefaultTopP          = 0.9
	DefaultSteps         = 256
	DefaultHardware      = "gpio"
	DefaultButtonPin     = "GPIO17"
	DefaultBusyLEDPin    = "GPIO27"
	DefaultReadyLEDPin   = "GPIO22"
	DefaultDebounceMS    = 50
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// WithDefaults returns a copy of c with unspecified fields filled in.
func (c Config) WithDefaults() Config {
	if c.ModelPath == "" {
		c.ModelPath = DefaultModelPath
	}
	if c.TokenizerPath == "" {
		c.TokenizerPath = DefaultTokenizerPath
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.Temperature == nil {
		c.Temperature = Float64(DefaultTemperature)
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	if c.Steps == nil {
		c.Steps = Int(DefaultSteps)
	}
	if c.Hardware == "" {
		c.Hardware = DefaultHardware
	}
	if c.ButtonPin == "" {
		c.ButtonPin = DefaultButtonPin
	}
	if c.ButtonEdge == "" {
		c.ButtonEdge = hw.EdgeFalling.String()
	}
	if c.DebounceMS == 0 {
		c.DebounceMS = DefaultDebounceMS
	}
	if c.BusyLEDPin == "" {
		c.BusyLEDPin = DefaultBusyLEDPin
	}
	if c.ReadyLEDPin == "" {
		c.ReadyLEDPin = DefaultReadyLEDPin
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	return c
}

// Float64 returns a pointer to v, for the optional Config fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// SamplingTemperature returns the configured temperature, or the default
// when unset.
func (c Config) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// StepBudget returns the configured step budget, or the default when unset.
// 0 means the model's sequence length.
func (c Config) StepBudget() int {
	if c.Steps == nil {
		return DefaultSteps
	}
	return *c.Steps
}

// ExpandPaths expands a leading '~' in every path field.
func (c *Config) ExpandPaths() error {
	return fsutil.ExpandHomeAll(&c.ModelPath, &c.TokenizerPath, &c.EngineBin)
}

// Debounce returns the debounce window as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Engine {
	case "llama2c", "llama":
	default:
		errs = append(errs, fmt.Errorf("engine must be llama2c or llama, got %q", c.Engine))
	}
	switch c.Hardware {
	case "gpio", "console":
	default:
		errs = append(errs, fmt.Errorf("hardware must be gpio or console, got %q", c.Hardware))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must be >= 0, got %d", c.Threads))
	}
	if t := c.SamplingTemperature(); t < 0 {
		errs = append(errs, fmt.Errorf("temperature must be >= 0, got %g", t))
	}
	if c.TopP < 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be in [0, 1], got %g", c.TopP))
	}
	if n := c.StepBudget(); n < 0 {
		errs = append(errs, fmt.Errorf("steps must be >= 0, got %d", n))
	}
	if c.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMS))
	}
	if _, err := hw.ParseEdge(c.ButtonEdge); err != nil {
		errs = append(errs, fmt.Errorf("button_edge: %w", err))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug|info|warn|error, got %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
