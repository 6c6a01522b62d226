package main

import (
	"os"

	"github.com/evidlabel/did/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
