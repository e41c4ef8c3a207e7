package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/merkle"
	"github.com/weisyn/smart-account-sdk-go/types"
)

var merkleCmd = &cobra.Command{
	Use:   "merkle <digest-hex>...",
	Short: "Build a Merkle tree over intent digests and print the root and proofs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMerkle,
}

func trimHex(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}

func parseDigest(s string) (types.Hash, error) {
	var h types.Hash
	raw, err := hex.DecodeString(trimHex(s))
	if err != nil {
		return h, types.NewEncodingError("digest %q: %v", s, err)
	}
	if len(raw) != len(h) {
		return h, types.NewEncodingError("digest %q is %d bytes, want 32", s, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func runMerkle(cmd *cobra.Command, args []string) error {
	leaves := make([]types.Hash, len(args))
	for i, a := range args {
		h, err := parseDigest(a)
		if err != nil {
			return err
		}
		leaves[i] = h
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return err
	}
	root := tree.Root()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "root: %s\n", hex.EncodeToString(root[:]))
	for i, leaf := range leaves {
		proof, err := tree.ProofAt(i)
		if err != nil {
			return err
		}
		parts := make([]string, len(proof))
		for j, p := range proof {
			parts[j] = hex.EncodeToString(p[:])
		}
		fmt.Fprintf(out, "leaf %d %s proof=[%s] verified=%t\n",
			i, hex.EncodeToString(leaf[:]), strings.Join(parts, ","), merkle.Verify(root, leaf, proof))
	}
	return nil
}
