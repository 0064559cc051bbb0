package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/record"
)

func envCmd() *cobra.Command {
	var noExport bool

	cmd := &cobra.Command{
		Use:     "env <label>",
		Short:   "Print an environment record as a shell assignment",
		GroupID: "store",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			r, err := s.GetRecord(args[0])
			if err != nil {
				return fmt.Errorf("reading record: %w", err)
			}
			defer r.Clear()

			body, ok := r.Body.(*record.EnvironmentBody)
			if !ok {
				return fmt.Errorf("record %q is a %s record, not an environment record", r.Label, r.Body.Kind())
			}

			if !noExport {
				fmt.Printf("export %s=%s\n", body.Variable, body.Value.Expose())
			} else {
				fmt.Printf("%s=%s\n", body.Variable, body.Value.Expose())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noExport, "no-export", false, "omit the leading \"export \" keyword")
	return cmd
}
