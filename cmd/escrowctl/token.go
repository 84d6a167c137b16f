package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/mintaro/internal/address"
	"github.com/sudo-init-do/mintaro/internal/auth"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var secret, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Mint an access token for an address without signing in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if role != auth.RoleUser && role != auth.RoleAdmin {
				return fmt.Errorf("invalid role %q", role)
			}
			addr, err := address.Normalize(args[0])
			if err != nil {
				return err
			}
			token, exp, err := auth.NewIssuer(secret, ttl).Issue(addr, role)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(auth.LoginResponse{
					Token: token, Address: addr, Role: role, ExpiresAt: exp,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "token role (user|admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
