package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/record"
)

func dumpCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "dump <label>",
		Short:   "Print a record's fields",
		GroupID: "store",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			r, err := s.GetRecord(args[0])
			if err != nil {
				return fmt.Errorf("dumping record: %w", err)
			}
			defer r.Clear()

			if asJSON {
				data, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling record: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("label:     %s\n", r.Label)
			fmt.Printf("timestamp: %s\n", time.Unix(r.Timestamp, 0).Format(time.RFC3339))
			fmt.Printf("kind:      %s\n", r.Body.Kind())

			switch b := r.Body.(type) {
			case *record.LoginBody:
				fmt.Printf("username:  %s\n", b.Username)
				fmt.Printf("password:  %s\n", b.Password.Expose())
			case *record.EnvironmentBody:
				fmt.Printf("variable:  %s\n", b.Variable)
				fmt.Printf("value:     %s\n", b.Value.Expose())
			case *record.UnstructuredBody:
				fmt.Printf("contents:  %s\n", b.Contents.Expose())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "dump the record as JSON instead of plain text")
	return cmd
}
