package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/smart-account-sdk-go/wallet"
)

const passwordEnv = "INTENTCTL_PASSWORD"

var (
	keysDir      string
	keysName     string
	keysKind     string
	keysPassword string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encrypted passkey and fee payer keys",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a key and store it in the keystore",
	RunE:  runKeysNew,
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the public part of a stored key",
	RunE:  runKeysShow,
}

func init() {
	keysCmd.PersistentFlags().StringVar(&keysDir, "dir", "", "Keystore directory (default: config keystore_dir or ./keystore)")
	keysCmd.PersistentFlags().StringVar(&keysName, "name", "", "Key name")
	keysCmd.PersistentFlags().StringVar(&keysPassword, "password", "", "Keystore password (or set "+passwordEnv+")")
	keysNewCmd.Flags().StringVar(&keysKind, "kind", string(wallet.KeyKindPasskey), "Key kind: p256-passkey or ed25519-fee-payer")

	keysCmd.AddCommand(keysNewCmd)
	keysCmd.AddCommand(keysShowCmd)
}

func keystore() (*wallet.KeystoreManager, string, error) {
	if keysName == "" {
		return nil, "", fmt.Errorf("--name is required")
	}
	password := keysPassword
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return nil, "", fmt.Errorf("--password or %s is required", passwordEnv)
	}

	dir := keysDir
	if dir == "" {
		dir = cfg.KeystoreDir
	}
	if dir == "" {
		dir = "keystore"
	}
	km, err := wallet.NewKeystoreManager(dir)
	if err != nil {
		return nil, "", err
	}
	return km, password, nil
}

func runKeysNew(cmd *cobra.Command, args []string) error {
	km, password, err := keystore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch wallet.KeyKind(keysKind) {
	case wallet.KeyKindPasskey:
		cred, err := wallet.NewPasskeyCredential()
		if err != nil {
			return err
		}
		path, err := km.SavePasskey(keysName, cred, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\npublicKey: %s\n", path, hex.EncodeToString(cred.PublicKey()))
	case wallet.KeyKindFeePayer:
		payer, err := wallet.NewFeePayer()
		if err != nil {
			return err
		}
		path, err := km.SaveFeePayer(keysName, payer, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\naddress: %s\n", path, payer.Address())
	default:
		return fmt.Errorf("unknown key kind %q", keysKind)
	}
	return nil
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	km, password, err := keystore()
	if err != nil {
		return err
	}
	kind, secret, err := km.Load(keysName, password)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch kind {
	case wallet.KeyKindPasskey:
		cred, err := wallet.NewPasskeyCredentialFromBytes(secret)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kind: %s\npublicKey: %s\n", kind, hex.EncodeToString(cred.PublicKey()))
	case wallet.KeyKindFeePayer:
		payer, err := wallet.NewFeePayerFromSeed(secret)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kind: %s\naddress: %s\n", kind, payer.Address())
	default:
		return fmt.Errorf("unknown key kind %q", kind)
	}
	return nil
}
