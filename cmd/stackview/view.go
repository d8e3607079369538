package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/nixlim/stackview/internal/config"
	"github.com/nixlim/stackview/internal/debuglog"
	"github.com/nixlim/stackview/internal/events"
	"github.com/nixlim/stackview/internal/render"
	"github.com/nixlim/stackview/internal/source"
	"github.com/nixlim/stackview/internal/tui"
)

// viewSettings is the resolved configuration for one rendering run.
type viewSettings struct {
	path      string
	format    source.Format
	color     render.ColorMode
	recording string
	cfg       config.Config
	logger    debuglog.Logger
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyViewFlags(cmd, &cfg); err != nil {
		return err
	}

	vs := viewSettings{path: source.Stdin, cfg: cfg}
	if len(args) == 1 {
		vs.path = args[0]
	}
	if vs.format, err = source.ParseFormat(cfg.Source.Format); err != nil {
		return err
	}
	if vs.color, err = render.ParseColorMode(cfg.Display.Color); err != nil {
		return err
	}
	vs.recording, _ = cmd.Flags().GetString("recording")

	logger, closeLog, err := openDebugLog(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	vs.logger = logger

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, err := source.Open(ctx, vs.path, source.Options{
		Format:       vs.format,
		Follow:       cfg.Source.Follow,
		PollInterval: cfg.Source.FollowPoll(),
		Recording:    vs.recording,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if cfg.TUI.Enabled {
		err = runTUI(ctx, cancel, src, vs)
	} else {
		err = runPlain(ctx, cancel, src, vs)
	}
	if interrupted(err) {
		return nil
	}
	return err
}

// applyViewFlags overrides config values with flags given on the command
// line.
func applyViewFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Source.Format, _ = flags.GetString("format")
	}
	if flags.Changed("follow") {
		cfg.Source.Follow, _ = flags.GetBool("follow")
	}
	if flags.Changed("tui") {
		cfg.TUI.Enabled, _ = flags.GetBool("tui")
	}
	if flags.Changed("color") {
		cfg.Display.Color, _ = flags.GetString("color")
	}
	if flags.Changed("show-returns") {
		cfg.Display.ShowReturns, _ = flags.GetBool("show-returns")
	}
	if flags.Changed("timezone") {
		cfg.Display.Timezone, _ = flags.GetString("timezone")
	}
	if utc, _ := flags.GetBool("utc"); utc {
		if flags.Changed("timezone") {
			return fmt.Errorf("--utc and --timezone are mutually exclusive")
		}
		cfg.Display.Timezone = "utc"
	}
	if flags.Changed("delta-width") {
		n, _ := flags.GetInt("delta-width")
		if n <= 0 {
			return fmt.Errorf("--delta-width must be > 0, got %d", n)
		}
		cfg.Display.DeltaWidth = n
	}
	return nil
}

func rendererOptions(vs viewSettings, styles render.Styles) ([]render.Option, error) {
	loc, err := vs.cfg.Display.Location()
	if err != nil {
		return nil, fmt.Errorf("display.timezone: %w", err)
	}
	return []render.Option{
		render.WithStyles(styles),
		render.WithLocation(loc),
		render.WithDeltaWidth(vs.cfg.Display.DeltaWidth),
		render.WithShowReturns(vs.cfg.Display.ShowReturns),
		render.WithUnknownFunction(vs.cfg.Display.UnknownFunction),
		render.WithLogger(vs.logger),
	}, nil
}

// runPlain renders straight to stdout until the trace ends or a signal
// arrives.
func runPlain(ctx context.Context, cancel context.CancelFunc, src source.Source, vs viewSettings) error {
	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	styles := render.NewStyles(render.NewLipglossRenderer(os.Stdout, vs.color))
	opts, err := rendererOptions(vs, styles)
	if err != nil {
		return err
	}
	r := render.NewRenderer(out, opts...)

	var g run.Group
	{
		g.Add(func() error {
			_, err := render.Run(ctx, src, events.NewClassifier(), r, render.NewState())
			return err
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}
	return g.Run()
}

// runTUI renders into a scrollback buffer shown by the interactive viewer.
// The viewer stays open after the trace ends until the user quits.
func runTUI(ctx context.Context, cancel context.CancelFunc, src source.Source, vs viewSettings) error {
	// Stray log output would corrupt the alternate screen.
	log.SetOutput(io.Discard)

	lines := tui.NewLineWriter(events.NewRingBuffer(vs.cfg.TUI.Scrollback))
	styles := render.NewStyles(render.NewLipglossRenderer(os.Stdout, vs.color))
	opts, err := rendererOptions(vs, styles)
	if err != nil {
		return err
	}
	r := render.NewRenderer(lines, opts...)

	title := vs.path
	if title == source.Stdin {
		title = "stdin"
	}
	p := tea.NewProgram(
		tui.NewModel(lines, tui.WithTitle(title), tui.WithOnShutdown(cancel)),
		tea.WithAltScreen(),
	)

	var (
		g         run.Group
		renderErr error
	)
	{
		g.Add(func() error {
			stats, err := render.Run(ctx, src, events.NewClassifier(), r, render.NewState())
			if interrupted(err) {
				return err
			}
			renderErr = err
			p.Send(tui.DoneMsg{Events: stats.Events, Err: err})
			<-ctx.Done()
			return ctx.Err()
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			_, err := p.Run()
			return err
		}, func(error) {
			p.Quit()
		})
	}
	{
		g.Add(run.SignalHandler(ctx, syscall.SIGTERM))
	}
	err = g.Run()
	return tuiResult(err, renderErr)
}

// tuiResult picks the exit error of the viewer. A failed render outlives the
// quit that dismissed it.
func tuiResult(groupErr, renderErr error) error {
	if renderErr != nil && !interrupted(renderErr) {
		return renderErr
	}
	return groupErr
}
