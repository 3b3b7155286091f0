package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sydlexius/artbrowser/internal/config"
	"github.com/sydlexius/artbrowser/internal/connection"
	"github.com/sydlexius/artbrowser/internal/filesystem"
	"github.com/sydlexius/artbrowser/internal/settingsio"
)

const passphraseEnv = "AB_EXPORT_PASSPHRASE"

// openSettingsIO loads config and wires the export service.
func openSettingsIO(cmd *cobra.Command, configPath string) (*settingsio.Service, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	enc, err := newEncryptor(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	svc := settingsio.NewService(db, connection.NewService(db, enc))
	return svc, func() { _ = db.Close() }, nil
}

func passphrase(cmd *cobra.Command) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	p, err := promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Passphrase: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("passphrase is required")
	}
	return p, nil
}

func newExportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write connections and settings to a passphrase-protected file",
		Long: `Writes every media server connection, API keys included, and every stored
setting to FILE. The content is encrypted with a key derived from the
passphrase, read from ` + passphraseEnv + ` or prompted for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := passphrase(cmd)
			if err != nil {
				return err
			}
			svc, closeDB, err := openSettingsIO(cmd, *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			env, err := svc.Export(cmd.Context(), pass)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return err
			}
			if err := filesystem.WriteFileAtomic(args[0], append(data, '\n'), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Apply connections and settings from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading export: %w", err)
			}
			var env settingsio.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("parsing export: %w", err)
			}
			pass, err := passphrase(cmd)
			if err != nil {
				return err
			}
			svc, closeDB, err := openSettingsIO(cmd, *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := svc.Import(cmd.Context(), &env, pass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d settings, created %d and updated %d connections\n",
				res.Settings, res.ConnectionsCreated, res.ConnectionsUpdated)
			return nil
		},
	}
}
