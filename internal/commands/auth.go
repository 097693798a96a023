package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/forward"
)

func newAuthCommand(opts *globalOptions) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Streamlabs connection",
	}
	authCmd.AddCommand(
		newAuthURLCommand(opts),
		newAuthCallbackCommand(opts),
		newAuthStatusCommand(opts),
		newAuthLogoutCommand(opts),
	)
	return authCmd
}

func newAuthURLCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Streamlabs authorization URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			if a.cfg.Streamlabs.ClientID == "" {
				return errors.New("streamlabs.client_id is not configured")
			}
			authURL, err := a.forwarder.BeginAuth()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), authURL)
			return nil
		},
	}
}

func newAuthCallbackCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <redirect-uri>",
		Short: "Complete authorization with the URI Streamlabs redirected to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			return runAuthCallback(cmd.OutOrStdout(), a, args[0])
		},
	}
}

func runAuthCallback(out io.Writer, a *app, uri string) error {
	code, state, err := forward.ParseRedirect(uri, a.cfg.Streamlabs.RedirectURI)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := a.forwarder.CompleteAuth(code, state); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	a.forwarder.Wait()

	if !a.forwarder.IsAuthenticated() {
		return errors.New("failed to connect to Streamlabs, please try again")
	}
	fmt.Fprintln(out, "Successfully connected to Streamlabs")
	return nil
}

func newAuthStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether Streamlabs credentials are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			status := "not authenticated"
			if a.forwarder.IsAuthenticated() {
				status = "authenticated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Streamlabs: %s (%s)\n", status, a.creds.Path())
			return nil
		},
	}
}

func newAuthLogoutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored Streamlabs credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			if err := a.creds.Clear(); err != nil {
				return fmt.Errorf("clearing credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out of Streamlabs")
			return nil
		},
	}
}
