package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every record label in the store",
		GroupID: "store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			labels, err := s.RecordLabels()
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}

			for _, label := range labels {
				fmt.Println(label)
			}
			return nil
		},
	}
}
