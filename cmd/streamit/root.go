package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/streamit/internal/app"
)

type rootFlags struct {
	apiURL   string
	store    string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "streamit",
		Short:         "streamit is a command line client for the StreamIt chat API",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Sign in with the code from the provider callback
  streamit login --callback "http://localhost:5173/auth/callback?code=..."

  # Who am I, and when does my token expire?
  streamit whoami

  # Any authenticated GET
  streamit call /api/channels

  # Local backend for trying things out
  streamit devapi
`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api", "", "StreamIt API base URL (env API_BASE_URL)")
	pf.StringVar(&flags.store, "store", "", "token store: file, sqlite or memory (env TOKEN_STORE)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (env LOG_LEVEL)")

	cmd.AddCommand(
		newLoginCommand(&flags),
		newLogoutCommand(&flags),
		newWhoamiCommand(&flags),
		newCallCommand(&flags),
		newChannelsCommand(&flags),
		newServeCommand(&flags),
		newDevAPICommand(&flags),
		newVersionCommand(),
	)
	return cmd
}

func (f *rootFlags) config() app.Config {
	cfg := app.LoadConfig()
	if f.apiURL != "" {
		cfg.APIBaseURL = f.apiURL
	}
	if f.store != "" {
		cfg.TokenStore = f.store
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg
}

// openApp builds the client and restores the persisted session.
func (f *rootFlags) openApp(cmd *cobra.Command) (*app.Application, error) {
	application, err := app.New(f.config())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := application.Start(cmd.Context()); err != nil {
		_ = application.Close()
		return nil, err
	}
	return application, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the streamit version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "streamit %s\n", app.BuildVersion)
			return err
		},
	}
}
