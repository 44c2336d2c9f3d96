package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), opts)
		},
	}
}

func runLogout(ctx context.Context, opts *rootOptions) error {
	s, err := loadSession(ctx, opts, false)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.controller.Snapshot()
	if !snap.IsAuthenticated() {
		fmt.Fprintln(opts.out, "Not signed in")
		return nil
	}
	if err := s.controller.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	fmt.Fprintf(opts.out, "Signed out %s\n", snap.User.Login)
	return nil
}
