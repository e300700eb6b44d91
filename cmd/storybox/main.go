package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"storybox/internal/config"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storybox:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the appliance.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "storybox",
		Short:         "Single-button story generator appliance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppliance(cmd.Context(), cmd, o, stdin, stdout, stderr)
		},
	}
	o.bind(root)

	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Load the model and tell a story on every button press",
		Example: "  storybox run --hardware console --model ~/models/stories15M.bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppliance(cmd.Context(), cmd, o, stdin, stdout, stderr)
		},
	}
	inspectCmd := &cobra.Command{
		Use:     "inspect",
		Short:   "Validate the model and tokenizer and print their parameters",
		Example: "  storybox inspect --model /data/stories15M_q80.bin --tokenizer /data/tokenizer.bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			return inspect(stdout, cfg)
		},
	}
	root.AddCommand(runCmd, inspectCmd)
	return root
}

// options collects the config file path and flag values.
type options struct {
	configPath string
	flags      config.Config
	// temperature and steps back the flags for the optional Config fields.
	temperature float64
	steps       int
}

func (o *options) bind(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "Config file (.yaml, .json or .toml)")
	f.StringVar(&o.flags.ModelPath, "model", "", "Model checkpoint path (default "+config.DefaultModelPath+")")
	f.StringVar(&o.flags.TokenizerPath, "tokenizer", "", "Tokenizer path (default "+config.DefaultTokenizerPath+")")
	f.StringVar(&o.flags.Engine, "engine", "", "Inference engine: llama2c|llama (default llama2c)")
	f.StringVar(&o.flags.EngineBin, "engine-bin", "", "llama2.c run/runq binary (default: discover)")
	f.IntVar(&o.flags.Threads, "threads", 0, "Engine threads (0 = engine default)")
	f.Float64Var(&o.temperature, "temperature", config.DefaultTemperature, "Sampling temperature, 0 = greedy")
	f.Float64Var(&o.flags.TopP, "top-p", 0, "Nucleus sampling threshold (default 0.9)")
	f.Uint64Var(&o.flags.Seed, "seed", 0, "Sampler seed (0 = derive from clock)")
	f.IntVar(&o.steps, "steps", config.DefaultSteps, "Step budget, clamped to the model's sequence length (0 = full length)")
	f.StringVar(&o.flags.Prompt, "prompt", "", "Story prompt (default empty)")
	f.StringVar(&o.flags.Hardware, "hardware", "", "Board backend: gpio|console (default gpio)")
	f.StringVar(&o.flags.ButtonPin, "button-pin", "", "Button input pin (default "+config.DefaultButtonPin+")")
	f.StringVar(&o.flags.ButtonEdge, "button-edge", "", "Button edge: falling|rising|both (default falling)")
	f.IntVar(&o.flags.DebounceMS, "debounce-ms", 0, "Button debounce window in ms (default 50)")
	f.StringVar(&o.flags.BusyLEDPin, "busy-led-pin", "", "Busy indicator pin (default "+config.DefaultBusyLEDPin+")")
	f.StringVar(&o.flags.ReadyLEDPin, "ready-led-pin", "", "Ready indicator pin (default "+config.DefaultReadyLEDPin+")")
	f.StringVar(&o.flags.MetricsAddr, "metrics-addr", "", "Diagnostics HTTP listen address, e.g. :9100 (disabled when empty)")
	f.StringSliceVar(&o.flags.CORSOrigins, "cors-origins", nil, "Comma-separated origins allowed to read diagnostics")
	f.StringVar(&o.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	f.StringVar(&o.flags.LogFormat, "log-format", "", "Log format: console|json (default console)")
}
