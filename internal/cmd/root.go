package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "hub",
		Short: "Run interactive shells on pseudo-terminals",
		Long: `hub runs a shell on a pseudo-terminal, keeps a model of its screen and
relays keys and window sizes to it. Use "hub shell" for a full-screen panel
or "hub peek" to drive a shell headlessly and print what it shows.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default $HUB_CONFIG or ~/.config/hub/config.yaml)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&g.logFile, "log-file", "", "Append logs to this file")
	pf.StringArrayVar(&g.overrides, "set", nil, "Override a config field (key=value, repeatable)")

	rootCmd.AddCommand(
		newShellCmd(g),
		newPeekCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)

	return rootCmd
}
