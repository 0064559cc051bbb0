package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func renameCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "rename <old> <new>",
		Short:   "Rename a record",
		GroupID: "store",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			if err := s.RenameRecord(args[0], args[1], force); err != nil {
				return fmt.Errorf("renaming record: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing record at the new label")
	return cmd
}
