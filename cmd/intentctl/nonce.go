package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/services/execution"
)

var nonceHex bool

var nonceCmd = &cobra.Command{
	Use:   "nonce <account-id>",
	Short: "Read the current nonce of a smart account from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runNonce,
}

func init() {
	nonceCmd.Flags().BoolVar(&nonceHex, "hex", false, "Account id is hex encoded")
}

func runNonce(cmd *cobra.Command, args []string) error {
	accountID, err := parseAccountID(args[0], nonceHex)
	if err != nil {
		return err
	}

	ledger, err := newLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	svc, err := execution.NewService(ledger, cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	nonce, err := svc.FetchNonce(ctx, accountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", nonce)
	return nil
}
