package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/record"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "new <label> <kind>",
		Short:   "Create a new record",
		GroupID: "store",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, kind := args[0], args[1]

			body, err := readBody(record.Kind(kind))
			if err != nil {
				return err
			}

			s, err := loadSession()
			if err != nil {
				return err
			}

			if err := s.AddRecord(record.New(label, body)); err != nil {
				return fmt.Errorf("adding record: %w", err)
			}
			return nil
		},
	}

	return cmd
}

// splitFieldTerminator splits on '\n' or '\x01', whichever comes
// first: an interactive caller feeds newline-terminated lines, while
// the original CLI's scripted input (and spec.md's S1/S2 scenarios)
// feeds single-byte '\x01'-separated fields.
func splitFieldTerminator(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == 0x01 {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	if atEOF {
		return 0, nil, bufio.ErrFinalToken
	}
	return 0, nil, nil
}

// readBody reads kind's fields from stdin, one per field, in the order
// a human typing them at a prompt would expect.
func readBody(kind record.Kind) (record.Body, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(splitFieldTerminator)

	readLine := func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("reading field: %w", err)
			}
			return "", fmt.Errorf("reading field: unexpected end of input")
		}
		return scanner.Text(), nil
	}

	switch kind {
	case record.KindLogin:
		username, err := readLine("username: ")
		if err != nil {
			return nil, err
		}
		password, err := readLine("password: ")
		if err != nil {
			return nil, err
		}
		return record.NewLoginBody(username, password), nil
	case record.KindEnvironment:
		variable, err := readLine("variable: ")
		if err != nil {
			return nil, err
		}
		value, err := readLine("value: ")
		if err != nil {
			return nil, err
		}
		return record.NewEnvironmentBody(variable, value), nil
	case record.KindUnstructured:
		contents, err := readLine("contents: ")
		if err != nil {
			return nil, err
		}
		return record.NewUnstructuredBody(contents), nil
	default:
		return nil, fmt.Errorf("unknown record kind: %q", kind)
	}
}
