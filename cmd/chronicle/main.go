package main

import (
	"os"

	"github.com/changelog-tools/chronicle/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
