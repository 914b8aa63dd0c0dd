package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/service"
)

func newPendingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect scrobbles waiting to be resubmitted",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List queued scrobbles",
			Args:  cobra.NoArgs,
			RunE:  runPendingList,
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Resubmit queued scrobbles now",
			Args:  cobra.NoArgs,
			RunE:  runPendingFlush,
		},
	)
	return cmd
}

func runPendingList(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	pending, err := a.state.GetPendingScrobbles()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpPendingList, err))
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending scrobbles")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tARTIST\tTRACK\tPLAYED\tATTEMPTS\tLAST ERROR")
	for _, p := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ServiceID, p.Artist, p.Track, humanize.Time(p.Timestamp), p.Attempts, p.LastError)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s pending, oldest queued %s; dropped after %d attempts\n",
		humanize.Comma(int64(len(pending))), humanize.Time(pending[0].CreatedAt), service.MaxAttempts)
	return nil
}

func runPendingFlush(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := service.NewRetrier(a.aggregator(), a.state, a.logger).RetryOnce(cmd.Context())
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpPendingFlush, err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d submitted, %d failed, %d skipped\n", res.Succeeded, res.Failed, res.Skipped)
	return nil
}
