package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "wordsprout").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wordsprout.log"), nil
}

// setupLog silences logging unless debug is set, in which case everything
// goes to the log file. The returned func closes the file.
func setupLog(debug bool) (func() error, error) {
	log.SetOutput(io.Discard)
	log.SetTimeFormat(time.RFC3339)
	log.SetReportTimestamp(true)

	if !debug {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.Debug("Debug logging enabled", "file", logFile)
	return f.Close, nil
}
