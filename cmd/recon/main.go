package main

import (
	"os"

	"github.com/eshaffer321/stripe-ledger-recon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
