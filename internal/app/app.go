// Package app wires configuration, logging, and the runtime components
// behind the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"padmux/internal/actions"
	"padmux/internal/audio"
	"padmux/internal/bridge"
	"padmux/internal/cli"
	"padmux/internal/config"
	"padmux/internal/controller"
	"padmux/internal/dispatch"
	"padmux/internal/doctor"
	"padmux/internal/logging"
	"padmux/internal/status"
	"padmux/internal/tmux"
	"padmux/internal/transcribe"
	"padmux/internal/vad"
	"padmux/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("padmux"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("padmux"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandRun assembles the full pipeline and blocks in the dispatch loop
// until the context is cancelled or the controller disappears.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	loop, cleanup, err := buildLoop(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("pipeline setup failed", "error", err.Error())
		return 1
	}
	defer cleanup()

	err = loop.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("dispatch loop stopped")
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	logger.Error("dispatch loop failed", "error", err.Error())
	return 1
}

// buildLoop constructs every collaborator the dispatch loop needs. The
// returned cleanup releases the controller and audio source.
func buildLoop(cfg config.Config, logger *slog.Logger) (*dispatch.Loop, func(), error) {
	modifier, err := controller.Parse(cfg.Controller.PTTButton)
	if err != nil {
		return nil, nil, fmt.Errorf("ptt_button: %w", err)
	}

	bindings, err := actions.CompileBindings(cfg.Bindings, modifier)
	if err != nil {
		return nil, nil, fmt.Errorf("bindings: %w", err)
	}

	detector, err := vad.New(cfg.Voice.Detector, cfg.Voice.VADThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("voice detector: %w", err)
	}
	gate := vad.NewGate(detector, cfg.Voice.SilenceDuration(), cfg.Voice.MinSpeech())

	reader, err := controller.Open(cfg.Controller, logger)
	if err != nil {
		return nil, nil, err
	}

	var source audio.Source
	if cfg.Bridge.Enabled() {
		source = bridge.NewBridged(cfg.Bridge.Host, cfg.Bridge.Port, cfg.Bridge.PingInterval(), logger)
	} else {
		source = audio.NewLocal(cfg.Voice.Device, logger)
	}

	runner := tmux.New(cfg.Tmux.CommandTimeout())

	loop := dispatch.New(dispatch.Config{
		Controller:  reader,
		Source:      source,
		Gate:        gate,
		Transcriber: transcribe.NewWhisper(cfg.Voice.Endpoint, cfg.Voice.Model, cfg.Voice.Language, cfg.Voice.APIKey, logger),
		Registry:    actions.NewRegistry(logger),
		Bindings:    bindings,
		Tmux:        runner,
		Status:      status.NewManager(runner, logger, ""),
		PTTButton:   modifier,
		Logger:      logger,
		Reopen: func() (dispatch.ControllerSource, error) {
			return controller.Open(cfg.Controller, logger)
		},
	})

	cleanup := func() {
		_ = reader.Close()
		if closer, ok := source.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	return loop, cleanup, nil
}
