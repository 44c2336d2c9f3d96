package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to GitHub in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runLogin(ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "print the authorization URL without opening a browser")
	return cmd
}

func runLogin(ctx context.Context, opts *rootOptions) error {
	s, err := loadSession(ctx, opts, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if snap := s.controller.Snapshot(); snap.IsAuthenticated() {
		fmt.Fprintf(opts.out, "Already signed in as %s\n", snap.User.Login)
		return nil
	}

	if err := s.controller.SignIn(ctx); err != nil {
		return authFailed(err)
	}

	snap := s.controller.Snapshot()
	if !snap.IsAuthenticated() {
		return authFailed(errors.New("sign-in cancelled"))
	}
	fmt.Fprintf(opts.out, "Signed in as %s\n", snap.User.DisplayName())
	return nil
}
