// Command tokenhash prints the bcrypt hash of an admin token for http.admin_token_hash.
//
// Usage: tokenhash <token>   (or the token on stdin)
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/udisondev/survivalskills/internal/api"
)

func main() {
	token, err := readToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokenhash:", err)
		os.Exit(2)
	}

	hash, err := api.HashToken(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokenhash:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func readToken() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
