package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/mintaro/internal/address"
)

// NewAddressCommand creates the address command.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address <address>",
		Short: "Validate a party address and print its canonical and checksummed forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canonical, err := address.Normalize(args[0])
			if err != nil {
				return err
			}
			checksum := address.Checksum(canonical)
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"canonical": canonical,
					"checksum":  checksum,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), canonical)
			fmt.Fprintln(cmd.OutOrStdout(), checksum)
			return nil
		},
	}
}
