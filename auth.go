package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/lastfm"
	"github.com/llehouerou/scrobbled/internal/listenbrainz"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Link or unlink scrobbling accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show which services are linked",
			Args:  cobra.NoArgs,
			RunE:  runAuthStatus,
		},
		&cobra.Command{
			Use:   "lastfm",
			Short: "Link a Last.fm account through the browser",
			Args:  cobra.NoArgs,
			RunE:  runAuthLastfm,
		},
		&cobra.Command{
			Use:   "listenbrainz <token>",
			Short: "Link a ListenBrainz account with a user token",
			Args:  cobra.ExactArgs(1),
			RunE:  runAuthListenBrainz,
		},
		&cobra.Command{
			Use:       "unlink <service>",
			Short:     "Forget the session of a service",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{lastfm.ServiceID, listenbrainz.ServiceID},
			RunE:      runAuthUnlink,
		},
	)
	return cmd
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	for _, s := range a.aggregator().Statuses(cmd.Context()) {
		state := "not linked"
		if s.Authenticated {
			state = "linked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", s.Label, state)
	}
	if !a.cfg.HasLastfmConfig() {
		fmt.Fprintln(cmd.OutOrStdout(), "Last.fm is disabled: set lastfm.api_key and lastfm.api_secret")
	}
	return nil
}

func runAuthLastfm(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.lastfmClient == nil {
		return errors.New(errmsg.Format(errmsg.OpAuthLink,
			errors.New("lastfm.api_key and lastfm.api_secret are not configured")))
	}

	open := func(url string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Authorize scrobbled in your browser:\n  %s\n", url)
		if err := lastfm.OpenBrowser(url); err != nil {
			fmt.Fprintln(os.Stderr, "Could not open a browser; open the link above.")
		}
		return nil
	}
	username, err := lastfm.LinkAccount(cmd.Context(), a.lastfmClient, a.state, open)
	if err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpAuthLink, "Last.fm", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked Last.fm account %s\n", username)
	return nil
}

func runAuthListenBrainz(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	username, err := listenbrainz.Link(cmd.Context(), a.lbClient, a.state, args[0])
	if err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpAuthLink, "ListenBrainz", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked ListenBrainz account %s\n", username)
	return nil
}

func runAuthUnlink(cmd *cobra.Command, args []string) error {
	id := args[0]
	if id != lastfm.ServiceID && id != listenbrainz.ServiceID {
		return fmt.Errorf("unknown service %q", id)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.state.DeleteSession(id); err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpAuthUnlink, id, err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s\n", id)
	return nil
}
