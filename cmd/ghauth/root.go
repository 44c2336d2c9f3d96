package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jrsteele09/go-github-auth/internal/config"
	"github.com/jrsteele09/go-github-auth/internal/logger"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (bad configuration, storage failure).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates there is no usable session.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in flow failed or was cancelled.
	ExitCodeAuthFailed = 3
)

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func authRequired(format string, args ...any) error {
	return &exitError{code: ExitCodeAuthRequired, err: fmt.Errorf(format, args...)}
}

func authFailed(err error) error {
	return &exitError{code: ExitCodeAuthFailed, err: err}
}

type rootOptions struct {
	configPath string
	target     string
	noBrowser  bool

	cfg *config.ClientConfig
	in  io.Reader
	out io.Writer
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{in: in, out: out}

	cmd := &cobra.Command{
		Use:   "ghauth",
		Short: "Sign in to GitHub with OAuth and PKCE",
		Long: `ghauth signs in to GitHub in the browser using the authorization code flow
with PKCE, keeps the access token encrypted on disk (or in Redis) and reports
the signed-in account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig(opts.configPath)
			if err != nil {
				return err
			}
			if opts.target != "" {
				cfg.Target = opts.target
			}
			logger.SetupWithWriter("ghauth", "DEV", cfg.LogLevel, cmd.ErrOrStderr())
			opts.cfg = cfg
			return nil
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultClientConfigPath(), "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.target, "target", "", "runtime target: loopback, native or web (overrides the config file)")

	cmd.AddCommand(newLoginCmd(opts), newLogoutCmd(opts), newStatusCmd(opts))
	return cmd
}

func execute(args []string, in io.Reader, out io.Writer) int {
	cmd := newRootCmd(in, out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return ExitCodeSuccess
}

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitCodeError
}
