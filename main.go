package main

import (
	"os"

	"github.com/leftmike/pggate/cmd"
)

func main() {
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
