package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"storybox/internal/config"
	"storybox/internal/controller"
	"storybox/internal/engine"
	"storybox/internal/hw"
	"storybox/internal/lifecycle"
	"storybox/internal/telemetry"
)

// board bundles the button and the two indicators of one backend.
type board struct {
	button hw.EdgeSource
	busy   hw.Indicator
	ready  hw.Indicator
	close  func() error
}

func openBoard(cfg config.Config, stdin io.Reader, log *zerolog.Logger) (*board, error) {
	if cfg.Hardware == "console" {
		c := hw.NewConsole(hw.ConsoleConfig{In: stdin, Logger: log})
		return &board{button: c, busy: c.Indicator("busy"), ready: c.Indicator("ready"), close: func() error { return nil }}, nil
	}
	g, err := hw.OpenGPIO(hw.GPIOConfig{Logger: log})
	if err != nil {
		return nil, err
	}
	busy, err := g.Indicator(cfg.BusyLEDPin)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	ready, err := g.Indicator(cfg.ReadyLEDPin)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	return &board{button: g, busy: busy, ready: ready, close: g.Close}, nil
}

func newEngine(cfg config.Config, log *zerolog.Logger) engine.Engine {
	if cfg.Engine == "llama" {
		return engine.NewLlama(*log)
	}
	return engine.NewSubprocess(engine.SubprocessConfig{Bin: cfg.EngineBin, Logger: log})
}

var (
	metricsOnce sync.Once
	metrics     *controller.Metrics
)

// applianceMetrics registers the controller collectors with the default
// registry once per process.
func applianceMetrics() *controller.Metrics {
	metricsOnce.Do(func() { metrics = controller.NewMetrics(prometheus.DefaultRegisterer) })
	return metrics
}

func samplingConfig(cfg config.Config) lifecycle.SamplingConfig {
	return lifecycle.SamplingConfig{
		Temperature: float32(cfg.SamplingTemperature()),
		TopP:        float32(cfg.TopP),
		Seed:        cfg.Seed,
	}
}

// runAppliance runs the controller until SIGINT/SIGTERM. A fatal controller
// error keeps the process parked, indicators busy, until it is terminated;
// the error is then returned so the process exits non-zero.
func runAppliance(parent context.Context, cmd *cobra.Command, o *options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := o.resolve(cmd)
	if err != nil {
		return err
	}
	log := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBoard(cfg, stdin, &log)
	if err != nil {
		log.Error().Err(err).Str("event", "board_open_error").Str("hardware", cfg.Hardware).Msg("hardware unavailable")
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			log.Warn().Err(err).Str("event", "board_close_error").Msg("hardware close failed")
		}
	}()

	mgr := lifecycle.New(lifecycle.Config{
		Engine:  newEngine(cfg, &log),
		Storage: lifecycle.OSStorage{},
		Logger:  &log,
		Threads: cfg.Threads,
	})
	events := controller.NewMemoryPublisher(controller.DefaultEventHistory)
	edge, _ := hw.ParseEdge(cfg.ButtonEdge)
	ctrl := controller.New(controller.Config{
		Models:        mgr,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		Sampling:      samplingConfig(cfg),
		Prompt:        cfg.Prompt,
		Steps:         cfg.StepBudget(),
		Button:        b.button,
		ButtonPin:     cfg.ButtonPin,
		ButtonEdge:    edge,
		Debounce:      cfg.Debounce(),
		Busy:          b.busy,
		Ready:         b.ready,
		Output:        stdout,
		Logger:        &log,
		Publisher:     events,
		Metrics:       applianceMetrics(),
	})

	log.Info().Str("event", "start").Str("engine", cfg.Engine).Str("hardware", cfg.Hardware).
		Str("model", cfg.ModelPath).Str("tokenizer", cfg.TokenizerPath).Msg("storybox starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := ctrl.Run(gctx)
		if controller.IsFatal(err) {
			log.Error().Err(err).Str("event", "halted").Msg("halted; waiting for termination")
			<-gctx.Done()
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		telemetry.SetLogger(log)
		mux := telemetry.NewMux(ctrl, telemetry.Options{CORSOrigins: cfg.CORSOrigins, Events: events})
		g.Go(func() error {
			// Diagnostics are best-effort: a listener failure never stops the appliance.
			if err := telemetry.Serve(gctx, cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Str("event", "telemetry_error").Str("addr", cfg.MetricsAddr).Msg("diagnostics server unavailable")
			}
			return nil
		})
	}
	g.Go(func() error {
		watchReload(gctx, cmd, o, ctrl, &log)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info().Str("event", "exit").Msg("storybox stopped")
		return nil
	}
	return err
}

// requestSetter is the controller surface touched by a config reload.
type requestSetter interface {
	SetRequest(prompt string, steps int)
}

// watchReload re-reads the configuration on SIGHUP and applies the prompt and
// step budget. Other fields take effect on restart.
func watchReload(ctx context.Context, cmd *cobra.Command, o *options, ctrl requestSetter, log *zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reload(cmd, o, ctrl, log)
		}
	}
}

func reload(cmd *cobra.Command, o *options, ctrl requestSetter, log *zerolog.Logger) {
	cfg, err := o.resolve(cmd)
	if err != nil {
		log.Warn().Err(err).Str("event", "reload_error").Msg("config reload rejected")
		return
	}
	ctrl.SetRequest(cfg.Prompt, cfg.StepBudget())
	log.Info().Str("event", "reload").Str("config", o.configPath).Msg("config reloaded")
}
