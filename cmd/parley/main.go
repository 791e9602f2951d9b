package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/parley-app/parley/internal/client"
	"github.com/parley-app/parley/internal/tui"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "parley backend base URL")
	flag.Parse()

	logger, cleanup, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	api := client.New(*server)
	api.Logger = logger

	program := tea.NewProgram(tui.NewModel(api), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a debug logger writing to the file named by
// PARLEY_DEBUG_LOG. The terminal belongs to the UI, so without that
// variable all logging is discarded.
func newLogger() (*zap.Logger, func(), error) {
	path := os.Getenv("PARLEY_DEBUG_LOG")
	if path == "" {
		return zap.NewNop(), func() {}, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}
