package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/message"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <base64-tx|->",
	Short: "Decode a serialized transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var engineInstructionNames = func() map[[8]byte]string {
	names := map[[8]byte]string{}
	for _, n := range []string{
		program.IxValidateExecution,
		program.IxValidateExecutionViaSmartAccount,
		program.IxExecute,
		program.IxValidateOptimistic,
		program.IxExecuteOptimistic,
		program.IxPostExecuteOptimistic,
	} {
		names[program.Discriminator(n)] = n
	}
	return names
}()

func runInspect(cmd *cobra.Command, args []string) error {
	encoded := args[0]
	if encoded == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		encoded = string(raw)
	}
	tx, err := message.DecodeTransactionBase64(strings.TrimSpace(encoded))
	if err != nil {
		return err
	}
	msg := tx.Message
	payload := msg.Serialize()

	out := cmd.OutOrStdout()
	version := "legacy"
	if msg.Version == message.Version0 {
		version = "v0"
	}
	fmt.Fprintf(out, "version:   %s\n", version)
	fmt.Fprintf(out, "blockhash: %s\n", msg.RecentBlockhash)
	fmt.Fprintf(out, "header:    signatures=%d readonlySigned=%d readonlyUnsigned=%d\n",
		msg.Header.NumRequiredSignatures, msg.Header.NumReadonlySignedAccounts, msg.Header.NumReadonlyUnsignedAccounts)

	fmt.Fprintln(out, "signatures:")
	for i, sig := range tx.Signatures {
		signer := msg.AccountKeys[i]
		status := "missing"
		if !sig.IsZero() {
			status = "invalid"
			if ed25519.Verify(ed25519.PublicKey(signer[:]), payload, sig[:]) {
				status = "valid"
			}
		}
		fmt.Fprintf(out, "  [%d] %s %s\n", i, signer, status)
	}

	fmt.Fprintln(out, "accounts:")
	for i, key := range msg.AccountKeys {
		fmt.Fprintf(out, "  [%d] %s %s\n", i, key, flags(i < int(msg.Header.NumRequiredSignatures), msg.IsWritableStatic(i)))
	}
	for _, l := range msg.AddressTableLookups {
		fmt.Fprintf(out, "lookup %s writable=%v readonly=%v\n", l.TableAddress, l.WritableIndexes, l.ReadonlyIndexes)
	}

	fmt.Fprintln(out, "instructions:")
	for i, ix := range msg.Instructions {
		var prog types.Address
		if int(ix.ProgramIDIndex) < len(msg.AccountKeys) {
			prog = msg.AccountKeys[ix.ProgramIDIndex]
		}
		fmt.Fprintf(out, "  [%d] program=%s accounts=%v %s\n", i, prog, ix.Accounts, describe(prog, ix.Data))
	}

	if raw, err := tx.Serialize(); err != nil {
		fmt.Fprintf(out, "size: %v\n", err)
	} else {
		fmt.Fprintf(out, "size: %d/%d bytes\n", len(raw), message.PacketDataSize)
	}
	return nil
}

// describe 识别已知指令
func describe(prog types.Address, data []byte) string {
	switch prog {
	case program.Secp256r1ProgramID:
		p, err := program.ParseSecp256r1(data)
		if err != nil {
			return "secp256r1 (malformed)"
		}
		return fmt.Sprintf("secp256r1 pubkey=%s message=%d bytes", hex.EncodeToString(p.PublicKey), len(p.Message))
	case program.ComputeBudgetProgramID:
		return "compute-budget data=" + hex.EncodeToString(data)
	}
	if len(data) >= 8 {
		var disc [8]byte
		copy(disc[:], data)
		if name, ok := engineInstructionNames[disc]; ok {
			return fmt.Sprintf("%s data=%d bytes", name, len(data))
		}
	}
	return "data=" + hex.EncodeToString(data)
}
