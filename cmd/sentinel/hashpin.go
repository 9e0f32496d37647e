package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nerrad567/gray-logic-sentinel/internal/auth"
)

// hashPINCommand is the subcommand that prints a security.pin_hash value.
const hashPINCommand = "hash-pin"

var errNoPIN = errors.New("no PIN given")

// hashPIN hashes the PIN given as the first argument, or read from the
// first line of stdin, and writes the PHC string to stdout.
//
// Usage:
//
//	sentinel hash-pin 482913
//	echo 482913 | sentinel hash-pin
func hashPIN(args []string, stdin io.Reader, stdout io.Writer) error {
	var pin string
	if len(args) > 0 {
		pin = args[0]
	} else {
		scanner := bufio.NewScanner(stdin)
		if scanner.Scan() {
			pin = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading PIN: %w", err)
		}
	}

	pin = strings.TrimSpace(pin)
	if pin == "" {
		return errNoPIN
	}

	hash, err := auth.HashPIN(pin)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}
