package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ZeroiJ/hub/internal/config"
	"github.com/ZeroiJ/hub/internal/panel"
	"github.com/ZeroiJ/hub/internal/session"
)

func newShellCmd(g *globalFlags) *cobra.Command {
	var inline bool
	var quitOnExit bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Open the configured shell in a full-screen panel",
		Long: `Open the configured shell in a bordered panel. Keys go to the shell;
ctrl+\ detaches and shuts the shell down.

Logs are discarded unless --log-file is given, since the panel owns the
terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := g.setupLogging(cfg, io.Discard)
			if err != nil {
				return err
			}
			defer closeLog()

			return runShell(cmd.Context(), cfg, !inline, quitOnExit)
		},
	}

	cmd.Flags().BoolVar(&inline, "inline", false, "Draw in the main screen instead of the alternate screen")
	cmd.Flags().BoolVar(&quitOnExit, "quit-on-exit", false, "Close the panel as soon as the shell exits")

	return cmd
}

func runShell(ctx context.Context, cfg *config.Config, altScreen, quitOnExit bool) error {
	reg := panel.NewRegistry()
	defer reg.CloseAll()

	m := panel.New(reg, sessionLauncher(cfg))
	m.Profile = termenv.EnvColorProfile()
	m.QuitOnExit = quitOnExit

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return fmt.Errorf("run shell panel: %w", err)
	}
	if pm, ok := final.(panel.Model); ok && pm.Err() != nil {
		return pm.Err()
	}
	return nil
}

// sessionLauncher starts sessions from cfg at whatever size the panel asks for.
func sessionLauncher(cfg *config.Config) panel.Launcher {
	return func(ctx context.Context, cols, rows int) (string, panel.Terminal, error) {
		s, err := session.Launch(ctx, cfg.LaunchConfig(cols, rows))
		if err != nil {
			return "", nil, err
		}
		return s.ID, s, nil
	}
}
