package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dhruvspathak/Songify/internal"
	"github.com/dhruvspathak/Songify/internal/config"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/urfave/cli/v3"
)

var BuildVersion = "dev"

func applyLogLevel(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if level := cmd.String("log-level"); level != "" {
		if err := log.SetLogLevel(level); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg.Version = BuildVersion
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result := config.Validate(cfg)
	for _, warn := range result.Warnings {
		log.LogWarnWithFields("main", "Configuration warning", map[string]any{
			"path":    warn.Path,
			"message": warn.Message,
		})
	}
	if err := result.Err(); err != nil {
		return err
	}

	log.LogInfoWithFields("main", "Starting songify-auth", map[string]any{
		"version":     BuildVersion,
		"environment": string(cfg.Environment()),
	})

	app, err := internal.NewSongify(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return app.Run(ctx)
}

func printResult(w io.Writer, result *config.ValidationResult) {
	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "Errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}

	switch {
	case len(result.Errors) > 0:
		fmt.Fprintln(w, "Result: FAIL")
	case len(result.Warnings) > 0:
		fmt.Fprintln(w, "Result: PASS (warnings present)")
	default:
		fmt.Fprintln(w, "Result: PASS")
	}
}

func checkConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result := config.Validate(cfg)
	printResult(cmd.Root().Writer, result)
	if !result.IsValid() {
		return cli.Exit("", 1)
	}
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "songify-auth",
		Usage:   "Spotify OAuth backend for the Songify frontend",
		Version: BuildVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: error, warn, info, debug or trace",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: applyLogLevel,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "check-config",
				Usage:  "Validate the environment configuration and exit",
				Action: checkConfig,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.LogError("songify-auth: %v", err)
		os.Exit(1)
	}
}
