package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sydlexius/artbrowser/internal/auth"
	"github.com/sydlexius/artbrowser/internal/config"
	"github.com/sydlexius/artbrowser/internal/connection"
)

func newResetCredentialsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-credentials",
		Short: "Delete all accounts and stored media server API keys",
		Long: `Removes every user account and login session and blanks the API key of
every media server connection. Use it when the encryption key is lost or the
admin password is forgotten. The server should be stopped first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			if err := auth.NewService(db).ResetCredentials(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Credentials reset.")
			fmt.Fprintln(out, "Open the web UI to create a new admin account, then re-enter the API key of each connection.")
			return nil
		},
	}
}

func newAddConnectionCmd(configPath *string) *cobra.Command {
	var (
		name     string
		connType string
		url      string
		apiKey   string
		skipTest bool
	)

	cmd := &cobra.Command{
		Use:   "add-connection",
		Short: "Register a Jellyfin or Emby server",
		Example: `  # Prompt for the API key
  artbrowser add-connection --name Living --type jellyfin --url http://jellyfin:8096`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apiKey == "" {
				key, err := promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "API key: ")
				if err != nil {
					return err
				}
				apiKey = key
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			enc, err := newEncryptor(cfg, logger)
			if err != nil {
				return err
			}

			c := &connection.Connection{
				Name:    name,
				Type:    strings.ToLower(connType),
				URL:     url,
				APIKey:  apiKey,
				Enabled: true,
			}
			if err := c.Validate(); err != nil {
				return err
			}
			if !skipTest {
				if err := testConnection(cmd.Context(), c, logger); err != nil {
					return fmt.Errorf("connection test failed (use --skip-test to save anyway): %w", err)
				}
				c.Status = connection.StatusOK
			}

			if err := connection.NewService(db, enc).Create(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s connection %q with server id %s\n", c.Type, c.Name, c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&connType, "type", connection.TypeJellyfin, "server type: jellyfin or emby")
	cmd.Flags().StringVar(&url, "url", "", "server base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted when omitted)")
	cmd.Flags().BoolVar(&skipTest, "skip-test", false, "save without testing the connection")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func testConnection(ctx context.Context, c *connection.Connection, logger *slog.Logger) error {
	client, err := connection.NewClient(c, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return client.TestConnection(ctx)
}

// promptSecret reads a line without echo when in is a terminal.
func promptSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		b, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // fd fits in int
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	var line string
	if _, err := fmt.Fscanln(in, &line); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
