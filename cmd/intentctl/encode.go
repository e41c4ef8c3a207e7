package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/intent"
	"github.com/weisyn/smart-account-sdk-go/program"
	"github.com/weisyn/smart-account-sdk-go/types"
)

// intentFile 意图 JSON 文件格式
type intentFile struct {
	AccountID  string                `json:"accountId"`
	Vault      string                `json:"vault,omitempty"`
	Nonce      uint64                `json:"nonce"`
	Fee        uint64                `json:"fee"`
	FeeAsset   string                `json:"feeAsset,omitempty"`
	Preamble   []intent.RawOperation `json:"preamble,omitempty"`
	Operations []intent.RawOperation `json:"operations"`
}

var encodeCmd = &cobra.Command{
	Use:   "encode <intent.json|->",
	Short: "Encode an intent and print its bytes, hash and execution package",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// loadIntent 解析意图文件，返回意图与金库地址
func loadIntent(data []byte) (*intent.Intent, types.Address, error) {
	var f intentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, types.Address{}, fmt.Errorf("parse intent: %w", err)
	}

	var vault types.Address
	switch {
	case f.Vault != "":
		v, err := types.ParseAddress(f.Vault)
		if err != nil {
			return nil, types.Address{}, types.NewEncodingError("vault: %v", err)
		}
		vault = v
	case f.AccountID != "":
		d, err := program.NewDeriver(engineProgramID(), 0).Vault([]byte(f.AccountID))
		if err != nil {
			return nil, types.Address{}, err
		}
		vault = d.Address
	default:
		return nil, types.Address{}, types.NewEncodingError("either accountId or vault is required")
	}

	steps, err := intent.ParseOperations(f.Operations)
	if err != nil {
		return nil, types.Address{}, err
	}
	preamble, err := intent.ParseOperations(f.Preamble)
	if err != nil {
		return nil, types.Address{}, err
	}

	in := &intent.Intent{Nonce: f.Nonce, FeeAmount: f.Fee, Preamble: preamble, Steps: steps}
	if f.FeeAsset != "" {
		asset, err := types.ParseAddress(f.FeeAsset)
		if err != nil {
			return nil, types.Address{}, types.NewEncodingError("feeAsset: %v", err)
		}
		in.FeeAsset = &asset
	}
	return in, vault, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	in, vault, err := loadIntent(data)
	if err != nil {
		return err
	}

	enc := intent.NewEncoder(vault)
	enc.VaultWritable = !cfg.VaultReadOnly
	if cfg.MaxPayloadSize > 0 {
		enc.MaxPayloadSize = cfg.MaxPayloadSize
	}
	encoded, err := enc.Encode(in)
	if err != nil {
		return err
	}
	pkg, err := intent.PackEncoded(encoded)
	if err != nil {
		return err
	}
	hash := encoded.Hash()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "vault:       %s\n", vault)
	fmt.Fprintf(out, "intentBytes: %s\n", hex.EncodeToString(encoded.Bytes))
	fmt.Fprintf(out, "intentHash:  %s\n", hex.EncodeToString(hash[:]))
	fmt.Fprintf(out, "operations:  %d\n", len(pkg.Operations))
	for i, op := range pkg.Operations {
		fmt.Fprintf(out, "  [%d] accountCount=%d payload=%s\n", i, op.AccountCount, hex.EncodeToString(op.Payload))
	}
	fmt.Fprintf(out, "remainingAccounts: %d\n", len(pkg.RemainingAccounts))
	for i, acc := range pkg.RemainingAccounts {
		fmt.Fprintf(out, "  [%d] %s %s\n", i, acc.Address, flags(acc.IsSigner, acc.IsWritable))
	}
	return nil
}

func flags(signer, writable bool) string {
	s := []byte("--")
	if signer {
		s[0] = 's'
	}
	if writable {
		s[1] = 'w'
	}
	return string(s)
}
