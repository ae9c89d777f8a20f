package main

import (
	"os"

	"github.com/stwalsh4118/dealdesk/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
