package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/nixlim/stackview/internal/config"
	"github.com/nixlim/stackview/internal/debuglog"
)

var (
	warnPrefix  = color.New(color.FgYellow, color.Bold)
	errorPrefix = color.New(color.FgRed, color.Bold)
	okPrefix    = color.New(color.FgGreen)
)

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warnPrefix.Sprint("stackview: warning:"), fmt.Sprintf(format, args...))
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorPrefix.Sprint("stackview: error:"), fmt.Sprintf(format, args...))
}

// loadConfig reads --config (or the default path) and reports warnings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		res *config.LoadResult
		err error
	)
	if path == "" {
		res, err = config.Load()
	} else {
		res, err = config.LoadFrom(path)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	for _, w := range res.Warnings {
		warnf("config: %s", w)
	}
	return res.Config, nil
}

// openDebugLog opens the --debug file. Without the flag it returns a
// NopLogger and a no-op close.
func openDebugLog(cmd *cobra.Command) (debuglog.Logger, func(), error) {
	path, _ := cmd.Flags().GetString("debug")
	if path == "" {
		return debuglog.NopLogger{}, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening debug log: %w", err)
	}
	return debuglog.NewFileLogger(f), func() { _ = f.Close() }, nil
}

// interrupted reports whether err only says the user stopped the program.
func interrupted(err error) bool {
	return errors.Is(err, run.ErrSignal) || errors.Is(err, context.Canceled)
}
