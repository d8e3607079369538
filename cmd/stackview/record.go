package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/nixlim/stackview/internal/source"
)

var recordCmd = &cobra.Command{
	Use:   "record [trace]",
	Short: "Save a trace to a sqlite database, jsonl or msgpack file",
	Long: `record copies a trace (a file or standard input) into another format.
With no --out the events are appended as a new recording to the database
named by storage.db_path. Replay it with "stackview <db> --recording <id>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecord,
}

func init() {
	f := recordCmd.Flags()
	f.String("format", "", "input format: auto, jsonl, msgpack, otlp, otlp-proto or sqlite")
	f.String("out", "", "output path (default storage.db_path); its extension selects the format")
	f.String("out-format", "", "output format: auto, jsonl, msgpack or sqlite")
	f.BoolP("follow", "f", false, "keep recording as the input file grows, until interrupted")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := openDebugLog(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	in := source.Stdin
	if len(args) == 1 {
		in = args[0]
	}
	flags := cmd.Flags()
	inFormat, _ := flags.GetString("format")
	if inFormat == "" {
		inFormat = cfg.Source.Format
	}
	inF, err := source.ParseFormat(inFormat)
	if err != nil {
		return err
	}
	outFormat, _ := flags.GetString("out-format")
	outF, err := source.ParseFormat(outFormat)
	if err != nil {
		return err
	}
	out, _ := flags.GetString("out")
	if out == "" {
		out = cfg.Storage.DBPath
		if outF == source.FormatAuto {
			outF = source.FormatSQLite
		}
	}
	follow := cfg.Source.Follow
	if flags.Changed("follow") {
		follow, _ = flags.GetBool("follow")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, err := source.Open(ctx, in, source.Options{
		Format:       inF,
		Follow:       follow,
		PollInterval: cfg.Source.FollowPoll(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	label := in
	if in == source.Stdin {
		label = "stdin"
	}
	// The sink outlives ctx so an interrupted recording still gets flushed.
	sink, err := source.CreateSink(cmd.Context(), out, source.SinkOptions{
		Format:    outF,
		Label:     label,
		BatchSize: cfg.Storage.BatchSize,
	})
	if err != nil {
		return err
	}

	var n int
	var g run.Group
	{
		g.Add(func() error {
			var err error
			n, err = source.Copy(ctx, sink, src)
			return err
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}
	runErr := g.Run()

	if err := sink.Close(); err != nil && (runErr == nil || interrupted(runErr)) {
		runErr = fmt.Errorf("closing %s: %w", out, err)
	}
	if runErr != nil && !interrupted(runErr) {
		return runErr
	}

	msg := fmt.Sprintf("recorded %d events to %s", n, out)
	if id, ok := sink.(interface{ ID() string }); ok {
		msg += fmt.Sprintf(" (recording %s)", id.ID())
	}
	fmt.Fprintln(os.Stderr, okPrefix.Sprint(msg))
	return nil
}
