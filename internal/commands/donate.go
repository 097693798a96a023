package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

func newTestDonationCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-donation",
		Short: "Send a ₹1 test donation to Streamlabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stop := a.printEvents(cmd.OutOrStdout())
			defer stop()
			defer a.drain()

			if !a.forwarder.SendTest() {
				return errors.New("not connected to Streamlabs, run `fundsync auth url` first")
			}
			return nil
		},
	}
}
