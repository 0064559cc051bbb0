package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/prompt"
)

func initCmd() *cobra.Command {
	var passphraseWrapped bool

	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize a new kbs2 store and keypair",
		GroupID: "keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}

			keyfile := config.DefaultKeyfilePath()
			store := config.DefaultStorePath()

			if err := os.MkdirAll(filepath.Dir(keyfile), 0o700); err != nil {
				return fmt.Errorf("creating keyfile directory: %w", err)
			}
			if err := os.MkdirAll(store, 0o700); err != nil {
				return fmt.Errorf("creating store directory: %w", err)
			}

			var publicKey string
			if passphraseWrapped {
				passphrase, err := prompt.Confirm(
					"Passphrase for new key: ",
					"Confirm passphrase: ",
				)
				if err != nil {
					return err
				}
				defer passphrase.Wipe()

				publicKey, err = backend.CreateWrappedKeypair(keyfile, passphrase)
				if err != nil {
					return fmt.Errorf("generating wrapped keypair: %w", err)
				}
			} else {
				bareKey, err := backend.CreateKeypair(keyfile)
				if err != nil {
					return fmt.Errorf("generating keypair: %w", err)
				}
				publicKey = bareKey
			}

			cfg := config.DefaultConfig(publicKey, keyfile, store)
			cfg.Wrapped = passphraseWrapped

			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Fprintf(os.Stderr, "initialized kbs2 store at %s\n", store)
			fmt.Fprintf(os.Stderr, "public key: %s\n", publicKey)
			return nil
		},
	}

	cmd.Flags().BoolVar(&passphraseWrapped, "passphrase", false, "wrap the generated key behind a passphrase instead of storing it bare")
	return cmd
}
