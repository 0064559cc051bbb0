package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/prompt"
)

func rewrapCmd() *cobra.Command {
	var noBackup bool
	var force bool

	cmd := &cobra.Command{
		Use:     "rewrap",
		Short:   "Re-wrap the keyfile under a new passphrase, keeping the same identity",
		GroupID: "keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.Wrapped {
				return fmt.Errorf("rewrap: keyfile %s is not passphrase-wrapped; use rekey to introduce one", cfg.Keyfile)
			}

			if !force {
				confirmed, err := prompt.Passphrase(fmt.Sprintf("rewrap %s? type \"yes\" to continue: ", cfg.Keyfile))
				if err != nil {
					return err
				}
				defer confirmed.Wipe()
				if confirmed.String() != "yes" {
					return fmt.Errorf("rewrap: not confirmed")
				}
			}

			oldPass, err := prompt.Passphrase("Current passphrase: ")
			if err != nil {
				return err
			}
			defer oldPass.Wipe()

			newPass, err := prompt.Confirm("New passphrase: ", "Confirm new passphrase: ")
			if err != nil {
				return err
			}
			defer newPass.Wipe()

			if !noBackup {
				data, err := os.ReadFile(cfg.Keyfile)
				if err != nil {
					return fmt.Errorf("reading keyfile for backup: %w", err)
				}
				if err := os.WriteFile(cfg.Keyfile+".old", data, 0o600); err != nil {
					return fmt.Errorf("writing keyfile backup: %w", err)
				}
			}

			if err := backend.RewrapKeyfile(cfg.Keyfile, oldPass, newPass); err != nil {
				return fmt.Errorf("rewrapping keyfile: %w", err)
			}

			fmt.Fprintln(os.Stderr, "keyfile rewrapped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip writing a .old backup of the keyfile")
	cmd.Flags().BoolVar(&force, "force", false, "skip the interactive confirmation prompt")
	return cmd
}
