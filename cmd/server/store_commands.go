package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-embedded-app/revocation"
)

// newRevokeCmd marks a user's session revoked, as the uninstall webhook would.
func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <userId>",
		Short: "Mark a user's session revoked in the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store revocation.Store) error {
				if err := store.Revoke(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
				return nil
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <userId>",
		Short: "Remove a user's revocation flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store revocation.Store) error {
				if err := store.Clear(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			})
		},
	}
}

func withStore(ctx context.Context, fn func(context.Context, revocation.Store) error) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := revocation.New(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(ctx, store)
}
