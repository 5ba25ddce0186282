package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/gorelay/internal/logger"
	"github.com/Tyrowin/gorelay/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	port := flags.StringP("port", "p", "", "listen address, overrides the config (e.g. :8080)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("Starting relay", "grace_period", cfg.GracePeriod, "static_dir", cfg.StaticDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, log).Run(ctx); err != nil {
		return err
	}

	log.Info("Relay stopped cleanly")
	return nil
}
