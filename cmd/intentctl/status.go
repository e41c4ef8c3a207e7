package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/services/transaction"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status <signature>...",
	Short: "Show the confirmation status of transactions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "Wait until each transaction reaches the configured confirmation level")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ledger, err := newLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	svc := transaction.NewService(ledger, cfg)
	out := cmd.OutOrStdout()

	if statusWait {
		for _, sig := range args {
			st, err := svc.WaitForConfirmation(cmd.Context(), sig)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  slot=%d  %s\n", sig, st.Slot, st.ConfirmationStatus)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	statuses, err := svc.GetStatuses(ctx, args)
	if err != nil {
		return err
	}
	for i, st := range statuses {
		switch {
		case st == nil:
			fmt.Fprintf(out, "%s  unknown\n", args[i])
		case st.Err != nil:
			fmt.Fprintf(out, "%s  slot=%d  %s  failed: %v\n", args[i], st.Slot, st.ConfirmationStatus, st.Err)
		default:
			fmt.Fprintf(out, "%s  slot=%d  %s\n", args[i], st.Slot, st.ConfirmationStatus)
		}
	}
	return nil
}
