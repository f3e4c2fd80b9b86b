package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

// processConfig holds settings that only come from the environment.
type processConfig struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
	Debug     bool   `env:"ECHODRILL_DEBUG"`
	LogFile   string `env:"ECHODRILL_LOG_FILE"`
}

func getLogFilePath(cfg processConfig) (string, error) {
	if cfg.LogFile != "" {
		return cfg.LogFile, nil
	}
	p, err := gap.NewScope(gap.User, "echodrill").LogPath("echodrill.log")
	if err != nil {
		return "", fmt.Errorf("unable to find log directory: %w", err)
	}
	return p, nil
}

// setupLog routes the default logger to the log file. The terminal belongs
// to the drill output.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	cfg, err := env.ParseAs[processConfig]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	logFile, err := getLogFilePath(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}
