package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/streamit/internal/app"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

// apiError points at login when a request failed because the session
// could not be renewed.
func apiError(application *app.Application, err error) error {
	if streamsdk.IsUnauthorized(err) && !application.Session().Authenticated() {
		return fmt.Errorf("%w: %v", errLoginRequired, err)
	}
	return err
}

func newCallCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "call <path>",
		Short: "Send an authenticated GET and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			body, err := application.API().Get(cmd.Context(), path)
			if err != nil {
				return apiError(application, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
}

func newChannelsCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			channels, err := application.API().ListChannels(cmd.Context())
			if err != nil {
				return apiError(application, err)
			}

			out := cmd.OutOrStdout()
			for _, ch := range channels {
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", ch.ID, ch.ChannelName, ch.ChannelDescription); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(newChannelOpenCommand(flags), newChannelCreateCommand(flags))
	return cmd
}

func newChannelOpenCommand(flags *rootFlags) *cobra.Command {
	var page streamsdk.Page
	var cursor string

	cmd := &cobra.Command{
		Use:   "open <id>",
		Short: "Show a page of channel messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			page.Cursor = streamsdk.ID(cursor)
			view, err := application.API().OpenChannel(cmd.Context(), streamsdk.ID(args[0]), page)
			if err != nil {
				return apiError(application, err)
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().IntVar(&page.Limit, "limit", streamsdk.DefaultPageLimit, "messages per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from a previous page")
	return cmd
}

func newChannelCreateCommand(flags *rootFlags) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			ch, err := application.API().CreateChannel(cmd.Context(), streamsdk.CreateChannelRequest{
				ChannelName:        args[0],
				ChannelDescription: description,
			})
			if err != nil {
				return apiError(application, err)
			}
			return printJSON(cmd.OutOrStdout(), ch)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "channel description")
	return cmd
}
