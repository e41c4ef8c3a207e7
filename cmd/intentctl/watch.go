package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/services/event"
)

var (
	watchFailed       bool
	watchInstructions []string
	watchCount        int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream engine transactions (requires a websocket endpoint)",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFailed, "failed", false, "Only show rejected transactions")
	watchCmd.Flags().StringSliceVar(&watchInstructions, "instruction", nil, "Only show transactions with these engine instructions (e.g. execute)")
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "Exit after this many events (0 runs until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ledger, err := newLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	svc, err := event.NewService(ledger, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	events, err := svc.SubscribeEvents(ctx, &event.EventFilters{
		Instructions: watchInstructions,
		FailedOnly:   watchFailed,
	})
	if err != nil {
		return err
	}

	seen := 0
	for ev := range events {
		fmt.Fprintln(cmd.OutOrStdout(), ev.String())
		seen++
		if watchCount > 0 && seen >= watchCount {
			return nil
		}
	}
	return ctx.Err()
}
