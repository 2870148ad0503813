package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fbcarch/internal/app"
	"fbcarch/internal/config"
	"fbcarch/internal/infrastructure"
	"fbcarch/pkg/contracts"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		infrastructure.GetLogger().Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("web-licensed", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to config.yaml (defaults to "+config.ConfigFileEnv+" or the search list)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return nil
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run(ctx)
}
