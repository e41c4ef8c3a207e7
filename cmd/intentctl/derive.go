package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/program"
)

var deriveHex bool

var deriveCmd = &cobra.Command{
	Use:   "derive <account-id>",
	Short: "Derive vault, state, config and optimistic record addresses",
	Args:  cobra.ExactArgs(1),
	RunE:  runDerive,
}

func init() {
	deriveCmd.Flags().BoolVar(&deriveHex, "hex", false, "Account id is hex encoded")
}

// parseAccountID 账户 ID 默认按 UTF-8 字节解释
func parseAccountID(s string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(s), nil
	}
	id, err := hex.DecodeString(trimHex(s))
	if err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}
	return id, nil
}

func runDerive(cmd *cobra.Command, args []string) error {
	accountID, err := parseAccountID(args[0], deriveHex)
	if err != nil {
		return err
	}
	accts, err := program.NewDeriver(engineProgramID(), 0).All(accountID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "program:    %s\n", engineProgramID())
	fmt.Fprintf(out, "vault:      %s (bump %d)\n", accts.Vault.Address, accts.Vault.Bump)
	fmt.Fprintf(out, "state:      %s (bump %d)\n", accts.State.Address, accts.State.Bump)
	fmt.Fprintf(out, "config:     %s (bump %d)\n", accts.Config.Address, accts.Config.Bump)
	fmt.Fprintf(out, "optimistic: %s (bump %d)\n", accts.Optimistic.Address, accts.Optimistic.Bump)
	return nil
}
