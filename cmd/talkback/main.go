// Package main provides the entry point for the talkback server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/txn2/talkback/internal/server"
	"github.com/txn2/talkback/pkg/platform"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	envFile     string
	address     string
	showVersion bool
}

func parseFlags(args []string) (serverOptions, error) {
	opts := serverOptions{}
	fset := flag.NewFlagSet("talkback", flag.ContinueOnError)
	fset.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fset.StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
	fset.StringVar(&opts.address, "address", "", "Listen address (overrides config)")
	fset.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	if err := fset.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// loadEnvFile loads dotenv variables. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

func loadConfig(opts serverOptions) (*platform.Config, error) {
	cfg := platform.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = platform.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	return cfg, nil
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Printf("talkback version %s\n", server.Version)
		return nil
	}

	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := platform.NewLogger(os.Stderr, cfg.Server)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := platform.New(
		platform.WithConfig(cfg),
		platform.WithVersion(server.Version),
	)
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			slog.Error("platform shutdown failed", "error", cerr)
		}
	}()

	if err := p.Start(ctx); err != nil {
		return err
	}

	return server.Run(ctx, p.Handler(), server.Config{
		Address:           cfg.Server.Address,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	})
}
