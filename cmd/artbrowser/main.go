// Command artbrowser serves the remote image browser for Jellyfin and Emby
// servers.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/sydlexius/artbrowser/internal/version"
)

const defaultConfigPath = "/data/config.yaml"

func main() {
	// fang prints the error itself and cancels the context on SIGINT/SIGTERM.
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(syscall.SIGINT, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "artbrowser",
		Short: "Browse and apply remote artwork for media server items",
		Long: `artbrowser lists the candidate images a Jellyfin or Emby server offers
for a library item, pages and filters them, and tells the server to download
the one you pick.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	envDefault := os.Getenv("AB_CONFIG_PATH")
	if envDefault == "" {
		envDefault = defaultConfigPath
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", envDefault, "path to configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newResetCredentialsCmd(&configPath),
		newAddConnectionCmd(&configPath),
		newBackupCmd(&configPath),
		newExportCmd(&configPath),
		newImportCmd(&configPath),
		newVersionCmd(),
	)

	// Running without a subcommand starts the server.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configPath)
	}
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "artbrowser %s\n", version.String())
		},
	}
}
