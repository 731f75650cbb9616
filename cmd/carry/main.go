package main

import (
	"fmt"
	"os"

	"cashcarry/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
