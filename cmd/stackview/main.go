package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stackview [trace]",
	Short: "Render trace events as an indented call-stack view",
	Long: `stackview renders a recorded or live trace of native calls, Python calls,
syscalls and log statements as an indented call stack annotated with the
time elapsed since the previous event.

The trace is read from the given file, or from standard input when the
argument is omitted or "-". Supported formats are jsonl, msgpack, otlp
(protojson LogsData per line), otlp-proto (binary LogsData) and sqlite
recordings made with "stackview record".`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runView,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.config/stackview/config.toml)")
	rootCmd.PersistentFlags().String("debug", "", "write a JSONL debug log of skipped records and timestamp regressions to this file")

	addViewFlags(rootCmd)

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(configCmd)
}

// addViewFlags defines the rendering flags read by applyViewFlags.
func addViewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("format", "", "trace format: auto, jsonl, msgpack, otlp, otlp-proto or sqlite")
	f.BoolP("follow", "f", false, "keep reading as the trace file grows")
	f.Bool("tui", false, "show the stack view in a scrollable viewer")
	f.String("color", "", "colorize deltas: auto, always or never")
	f.Bool("show-returns", false, "print native and Python returns as their own lines")
	f.String("timezone", "", `time zone for the first timestamp: "local", "utc" or an IANA name`)
	f.Bool("utc", false, "shorthand for --timezone utc")
	f.Int("delta-width", 0, "column width deltas are right-aligned to")
	f.String("recording", "", "recording id to replay from a sqlite trace")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		errorf("%v", err)
		os.Exit(1)
	}
}
