package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-github-auth/apiclient"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in GitHub account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), opts, verify)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "check the stored token against the GitHub API")
	return cmd
}

func runStatus(ctx context.Context, opts *rootOptions, verify bool) error {
	s, err := loadSession(ctx, opts, false)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.controller.Snapshot()
	if !snap.IsAuthenticated() {
		return authRequired("not signed in, run 'ghauth login'")
	}

	fmt.Fprintf(opts.out, "Signed in as %s (%s)\n", snap.User.Login, snap.User.DisplayName())
	if !verify {
		return nil
	}

	live, err := s.factory.AuthenticatedUser(ctx)
	switch {
	case apiclient.IsUnauthorized(err):
		return authRequired("the stored token was rejected by GitHub, run 'ghauth login' again")
	case err != nil:
		return fmt.Errorf("verify token: %w", err)
	}
	fmt.Fprintf(opts.out, "Token verified for %s\n", live.Login)
	return nil
}
