package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

func newLoginCommand(flags *rootFlags) *cobra.Command {
	var code, callback string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an authorization code for a session",
		Long: `Without --code or --callback, login prints the provider URL to open in a
browser. The provider redirects back with ?code=, pass that URL with
--callback or the bare code with --code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if callback != "" {
				if code, err = streamsdk.ParseAuthCallback(callback); err != nil {
					return err
				}
			}
			if code == "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Open %s and rerun with --callback <redirect url>\n", application.API().LoginURL())
				return err
			}

			if err := application.Login(cmd.Context(), code); err != nil {
				return err
			}

			info := application.Info()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", info.Name)
			return err
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code")
	cmd.Flags().StringVar(&callback, "callback", "", "callback URL the provider redirected to")
	cmd.MarkFlagsMutuallyExclusive("code", "callback")
	return cmd
}

func newLogoutCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session locally and on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}

func newWhoamiCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			return printJSON(cmd.OutOrStdout(), application.Info())
		},
	}
}

// errLoginRequired is returned when a command needs a session that has
// ended.
var errLoginRequired = errors.New("session expired, run `streamit login`")
