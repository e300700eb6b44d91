package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storybox/internal/config"
)

// resolve merges the config file (if any) with explicitly set flags, fills
// defaults, expands paths and validates the result.
func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	fl := o.flags
	fl.Temperature, fl.Steps = config.Float64(o.temperature), config.Int(o.steps)
	applyFlags(&cfg, fl, cmd.Flags().Changed)
	cfg = cfg.WithDefaults()
	if err := cfg.ExpandPaths(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto dst.
func applyFlags(dst *config.Config, fl config.Config, changed func(string) bool) {
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("model", func() { dst.ModelPath = fl.ModelPath })
	set("tokenizer", func() { dst.TokenizerPath = fl.TokenizerPath })
	set("engine", func() { dst.Engine = fl.Engine })
	set("engine-bin", func() { dst.EngineBin = fl.EngineBin })
	set("threads", func() { dst.Threads = fl.Threads })
	set("temperature", func() { dst.Temperature = fl.Temperature })
	set("top-p", func() { dst.TopP = fl.TopP })
	set("seed", func() { dst.Seed = fl.Seed })
	set("steps", func() { dst.Steps = fl.Steps })
	set("prompt", func() { dst.Prompt = fl.Prompt })
	set("hardware", func() { dst.Hardware = fl.Hardware })
	set("button-pin", func() { dst.ButtonPin = fl.ButtonPin })
	set("button-edge", func() { dst.ButtonEdge = fl.ButtonEdge })
	set("debounce-ms", func() { dst.DebounceMS = fl.DebounceMS })
	set("busy-led-pin", func() { dst.BusyLEDPin = fl.BusyLEDPin })
	set("ready-led-pin", func() { dst.ReadyLEDPin = fl.ReadyLEDPin })
	set("metrics-addr", func() { dst.MetricsAddr = fl.MetricsAddr })
	set("cors-origins", func() { dst.CORSOrigins = append([]string(nil), fl.CORSOrigins...) })
	set("log-level", func() { dst.LogLevel = fl.LogLevel })
	set("log-format", func() { dst.LogFormat = fl.LogFormat })
}
