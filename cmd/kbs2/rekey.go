package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/prompt"
	"github.com/woodruffw/kbs2/internal/session"
)

func rekeyCmd() *cobra.Command {
	var noBackup bool
	var force bool

	cmd := &cobra.Command{
		Use:     "rekey",
		Short:   "Replace the keypair entirely, re-encrypting every record",
		GroupID: "keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !force {
				confirmed, err := prompt.Passphrase("rekey will replace the keypair and re-encrypt every record; type \"yes\" to continue: ")
				if err != nil {
					return err
				}
				defer confirmed.Wipe()
				if confirmed.String() != "yes" {
					return fmt.Errorf("rekey: not confirmed")
				}
			}

			if !noBackup {
				data, err := os.ReadFile(cfg.Keyfile)
				if err != nil {
					return fmt.Errorf("reading keyfile for backup: %w", err)
				}
				if err := os.WriteFile(cfg.Keyfile+".old", data, 0o600); err != nil {
					return fmt.Errorf("writing keyfile backup: %w", err)
				}
			}

			newPass, err := prompt.Confirm("New passphrase: ", "Confirm new passphrase: ")
			if err != nil {
				return err
			}
			defer newPass.Wipe()

			s, err := session.New(cfg)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			rekeyed, err := s.Rekey(newPass, path)
			if err != nil {
				return fmt.Errorf("rekeying: %w", err)
			}

			fmt.Fprintf(os.Stderr, "rekeyed; new public key: %s\n", rekeyed.Config().PublicKey)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip writing a .old backup of the keyfile")
	cmd.Flags().BoolVar(&force, "force", false, "skip the interactive confirmation prompt")
	return cmd
}
