package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <label>",
		Short:   "Remove a record",
		GroupID: "store",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			if err := s.DeleteRecord(args[0]); err != nil {
				return fmt.Errorf("removing record: %w", err)
			}
			return nil
		},
	}
}
