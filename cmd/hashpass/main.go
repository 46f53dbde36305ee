// Команда hashpass печатает bcrypt-хэш пароля для секции credentials конфига.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/password"
)

func main() {
	var plain string
	if len(os.Args) > 1 {
		plain = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: hashpass <password> or pipe it on stdin")
			os.Exit(2)
		}
		plain = strings.TrimRight(line, "\r\n")
	}

	hash, err := password.GetHash(plain)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpass:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
