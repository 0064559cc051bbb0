// Package prompt reads passphrases from the controlling terminal with
// echo disabled.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/woodruffw/kbs2/internal/zero"
)

// Passphrase prints prompt to stderr and reads a line from stdin with
// echo disabled if stdin is a terminal, falling back to a plain
// buffered read (still unechoed by the shell only if the caller has
// arranged that) when it is not — scripts and tests commonly pipe a
// passphrase through a non-terminal stdin.
func Passphrase(prompt string) (zero.Bytes, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		b := zero.New(string(data))
		for i := range data {
			data[i] = 0
		}
		return b, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return zero.New(line), nil
}

// Confirm reads a passphrase twice via Passphrase and returns an error
// if the two reads don't match.
func Confirm(prompt, confirmPrompt string) (zero.Bytes, error) {
	first, err := Passphrase(prompt)
	if err != nil {
		return nil, err
	}

	second, err := Passphrase(confirmPrompt)
	if err != nil {
		first.Wipe()
		return nil, err
	}
	defer second.Wipe()

	if first.String() != second.String() {
		first.Wipe()
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}
