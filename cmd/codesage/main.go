// Command codesage ingests git repositories into a vector store and answers
// retrieval queries against them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Anas-2357/CodeSage/config"
	"github.com/Anas-2357/CodeSage/registry"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CODESAGE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	reg, err := registry.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open registry: %v\n", err)
		os.Exit(1)
	}
	defer reg.Close()

	app := newCLIApp(reg, cfg, logger)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("CODESAGE_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
