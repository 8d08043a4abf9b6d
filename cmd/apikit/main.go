package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/apikit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "apikit:", err)
		os.Exit(1)
	}
}
