// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Benchd is the bench daemon: it owns a test target's power line,
// storage mux, console, and USB switches, and serves the control
// protocol on a unix socket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bench/lib/agent"
	"github.com/bureau-foundation/bench/lib/clock"
	"github.com/bureau-foundation/bench/lib/config"
	"github.com/bureau-foundation/bench/lib/console"
	"github.com/bureau-foundation/bench/lib/control"
	"github.com/bureau-foundation/bench/lib/driver"

	// Driver variants register themselves at init.
	_ "github.com/bureau-foundation/bench/lib/driver/gpio"
	_ "github.com/bureau-foundation/bench/lib/driver/img"
	_ "github.com/bureau-foundation/bench/lib/driver/tcpconsole"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var socketPath string
	var logLevel string

	pflag.StringVar(&configPath, "config", "", "path to config file (required)")
	pflag.StringVar(&socketPath, "socket", "", "override the configured control socket path")
	pflag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	params := agent.Params{
		LeaseTimeout:     time.Duration(cfg.LeaseTimeout),
		FeedbackInterval: time.Duration(cfg.FeedbackInterval),
		Logger:           logger,
	}

	if cfg.Power != nil {
		params.Power, err = driver.NewPower(cfg.Power.Variant, cfg.Power.Options)
		if err != nil {
			return fmt.Errorf("power driver: %w", err)
		}
	}
	if cfg.SDMux != nil {
		params.SDMux, err = driver.NewSDMux(cfg.SDMux.Variant, cfg.SDMux.Options)
		if err != nil {
			return fmt.Errorf("sdmux driver: %w", err)
		}
	}
	if cfg.Console != nil {
		device, err := driver.NewConsole(cfg.Console.Variant, cfg.Console.Options)
		if err != nil {
			return fmt.Errorf("console driver: %w", err)
		}
		params.Console = console.NewLogger(device, clock.Real(), logger)
	}
	for i, port := range cfg.USB {
		device, err := driver.NewUSBSwitch(port.Variant, port.Options)
		if err != nil {
			return fmt.Errorf("usb switch %d: %w", i+1, err)
		}
		params.USB = append(params.USB, agent.USBPort{Class: port.Class, Driver: device})
	}

	benchAgent := agent.New(params)
	if err := benchAgent.Start(); err != nil {
		return err
	}
	defer benchAgent.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := control.NewServer(cfg.SocketPath, benchAgent, logger)
	if err := server.Serve(ctx); err != nil {
		return err
	}

	logger.Info("benchd shut down")
	return nil
}
