// Command escrowctl is the operator CLI: it runs the escrow walkthrough on an
// in-process ledger, mints access tokens and checks addresses.
package main

import (
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
