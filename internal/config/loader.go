package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the appliance.
// Zero values mean "unspecified" and are replaced by WithDefaults, except for
// the pointer fields, where nil is unspecified and zero is a value.
type Config struct {
	ModelPath     string `json:"model_path" yaml:"model_path" toml:"model_path"`
	TokenizerPath string `json:"tokenizer_path" yaml:"tokenizer_path" toml:"tokenizer_path"`
	// Engine selects the backend: llama2c (subprocess) or llama (in-process).
	Engine    string `json:"engine" yaml:"engine" toml:"engine"`
	EngineBin string `json:"engine_bin" yaml:"engine_bin" toml:"engine_bin"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`

	// Temperature 0 selects greedy decoding.
	Temperature *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP        float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
	// Seed pins the sampler; zero derives it from the clock.
	Seed uint64 `json:"seed" yaml:"seed" toml:"seed"`
	// Steps 0 runs to the model's sequence length.
	Steps  *int   `json:"steps" yaml:"steps" toml:"steps"`
	Prompt string `json:"prompt" yaml:"prompt" toml:"prompt"`

	// Hardware selects the board backend: gpio or console.
	Hardware    string `json:"hardware" yaml:"hardware" toml:"hardware"`
	ButtonPin   string `json:"button_pin" yaml:"button_pin" toml:"button_pin"`
	ButtonEdge  string `json:"button_edge" yaml:"button_edge" toml:"button_edge"`
	DebounceMS  int    `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	BusyLEDPin  string `json:"busy_led_pin" yaml:"busy_led_pin" toml:"busy_led_pin"`
	ReadyLEDPin string `json:"ready_led_pin" yaml:"ready_led_pin" toml:"ready_led_pin"`

	// MetricsAddr enables the diagnostics HTTP server when set.
	MetricsAddr string   `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// decoders maps a config file extension to its unmarshaler.
var decoders = map[string]func([]byte, any) error{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
	".toml": toml.Unmarshal,
}

// Load reads a configuration file, choosing the format by extension
// (.yaml/.yml, .json, .toml). Fields absent from the file stay zero.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return cfg, fmt.Errorf("unsupported config extension %q", ext)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := decode(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}
