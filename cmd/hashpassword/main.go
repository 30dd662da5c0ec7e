// Command hashpassword prints the bcrypt hash to put in
// PARTICIPANT_A_PASSWORD_HASH or PARTICIPANT_B_PASSWORD_HASH.
//
// Usage:
//
//	hashpassword 'my secret password'
//	echo 'my secret password' | hashpassword
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mmynk/courtledger/internal/auth"
)

func main() {
	password, err := readPassword(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpassword: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpassword: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func readPassword(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no password given: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
