package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ZeroiJ/hub/internal/config"
	"github.com/ZeroiJ/hub/internal/keys"
	"github.com/ZeroiJ/hub/internal/render"
	"github.com/ZeroiJ/hub/internal/session"
	"github.com/ZeroiJ/hub/internal/termstyle"
)

type peekOptions struct {
	text   string
	keys   []string
	until  string
	wait   time.Duration
	ansi   bool
	status bool
	cols   int
	rows   int
}

func newPeekCmd(g *globalFlags) *cobra.Command {
	var opts peekOptions

	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Run the shell headlessly, type into it and print its screen",
		Long: `Launch the configured shell without a UI, type --text and then each
--keys entry, wait, and print the screen.

  hub peek --text 'ls -l' --keys enter          Run a command, print after 500ms
  hub peek --text 'make' --keys enter --until 'Done' --wait 30s
  hub peek --keys ctrl+d --status               Show how the shell exits
  hub peek --ansi --text 'ls --color' --keys enter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := g.setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			return runPeek(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Text to type; newlines are sent as enter")
	cmd.Flags().StringSliceVar(&opts.keys, "keys", nil, "Keys to press after --text, e.g. enter,ctrl+c,up")
	cmd.Flags().StringVar(&opts.until, "until", "", "Wait until this text is on screen")
	cmd.Flags().DurationVar(&opts.wait, "wait", 500*time.Millisecond, "How long to wait (the timeout when --until is set)")
	cmd.Flags().BoolVar(&opts.ansi, "ansi", false, "Print colors and attributes as ANSI escapes")
	cmd.Flags().BoolVar(&opts.status, "status", false, "Print the session state to stderr")
	cmd.Flags().IntVar(&opts.cols, "cols", 0, "Terminal width (default: this terminal's, or 80)")
	cmd.Flags().IntVar(&opts.rows, "rows", 0, "Terminal height (default: this terminal's, or 24)")

	return cmd
}

func runPeek(ctx context.Context, cfg *config.Config, opts peekOptions, out, errOut io.Writer) error {
	events, err := peekEvents(opts.text, opts.keys)
	if err != nil {
		return err
	}

	cols, rows := opts.cols, opts.rows
	if cols <= 0 || rows <= 0 {
		cols, rows = hostSize()
	}
	s, err := session.Launch(ctx, cfg.LaunchConfig(cols, rows))
	if err != nil {
		return err
	}
	defer s.Shutdown()

	for _, ev := range events {
		if err := s.HandleKey(ev); err != nil {
			return fmt.Errorf("send %s: %w", ev, err)
		}
	}
	waitErr := waitForScreen(ctx, s, opts.until, opts.wait)

	snap := s.Snapshot()
	if opts.ansi {
		fmt.Fprintln(out, render.ANSI(snap, render.Options{Profile: termenv.TrueColor}))
	} else {
		fmt.Fprintln(out, render.Plain(snap))
	}
	if opts.status {
		fmt.Fprintln(errOut, peekStatus(s))
	}
	return waitErr
}

// peekEvents turns --text and --keys into key events, text first.
func peekEvents(text string, names []string) ([]keys.Event, error) {
	var events []keys.Event
	for _, r := range text {
		switch r {
		case '\n':
			events = append(events, keys.Named(keys.KeyEnter))
		case '\t':
			events = append(events, keys.Named(keys.KeyTab))
		default:
			events = append(events, keys.Char(r))
		}
	}
	for _, name := range names {
		ev, ok := keys.Parse(name)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", name)
		}
		events = append(events, ev)
	}
	return events, nil
}

// waitForScreen returns once until is on screen, or, with no until, once
// timeout has passed or the shell has exited.
func waitForScreen(ctx context.Context, s *session.Session, until string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if until != "" && s.Snapshot().Contains(until) {
			return nil
		}
		select {
		case <-s.Updates():
		case <-s.Done():
			if until == "" || s.Snapshot().Contains(until) {
				return nil
			}
			return fmt.Errorf("shell exited before %q appeared", until)
		case <-timer.C:
			if until == "" {
				return nil
			}
			return fmt.Errorf("timed out after %v waiting for %q", timeout, until)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// hostSize is the size of the terminal hub runs in, or 0×0 when stdout is
// not a terminal.
func hostSize() (cols, rows int) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return cols, rows
}

func peekStatus(s *session.Session) string {
	cols, rows := s.Size()
	state := s.State()
	var dot, label string
	switch state {
	case session.StateRunning:
		dot, label = termstyle.GreenDot(), state.String()
	case session.StateExited:
		dot = termstyle.GrayDot()
		if code := s.ExitCode(); code >= 0 {
			label = fmt.Sprintf("exited (code %d)", code)
		} else {
			label = "exited (signal)"
		}
	default:
		dot, label = termstyle.RedDot(), state.String()
	}
	return fmt.Sprintf("%s %s %s", dot, termstyle.Bold(label),
		termstyle.Dim(fmt.Sprintf("pid %d · %dx%d · %s", s.PID, cols, rows, s.Shell)))
}
