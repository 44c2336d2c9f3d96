package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/go-github-auth/apiclient"
	"github.com/jrsteele09/go-github-auth/auth"
	"github.com/jrsteele09/go-github-auth/browser"
	"github.com/jrsteele09/go-github-auth/exchange"
	"github.com/jrsteele09/go-github-auth/internal/config"
	"github.com/jrsteele09/go-github-auth/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// session is the wired sign-in stack for one command.
type session struct {
	store      tokenstore.Store
	factory    *apiclient.Factory
	controller *auth.Controller
	closers    []func() error
}

func (s *session) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func openStore(cfg config.StorageConfig) (tokenstore.Store, func() error, error) {
	switch cfg.Backend {
	case config.StorageBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store, err := tokenstore.NewRedisStore(client, tokenstore.RedisStoreConfig{
			Namespace:  cfg.RedisNamespace,
			KeyDir:     cfg.Dir,
			Passphrase: cfg.Passphrase,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil
	default:
		store, err := tokenstore.NewFileStore(tokenstore.FileStoreConfig{
			Dir:        cfg.Dir,
			Passphrase: cfg.Passphrase,
			Logger:     &log.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

func targetSettings(cfg *config.ClientConfig) auth.TargetSettings {
	return auth.TargetSettings{
		NativeClientID:      cfg.NativeClientID,
		WebClientID:         cfg.WebClientID,
		WebOrigin:           cfg.WebOrigin,
		WebTokenExchangeURL: cfg.TokenExchangeURL,
		LoopbackPort:        cfg.LoopbackPort,
	}
}

// newSession wires store, API client factory, exchanger, launcher and controller.
// Only sign-in needs a resolved target; status and logout run with an empty one.
func newSession(opts *rootOptions, resolveTarget bool) (*session, error) {
	cfg := opts.cfg

	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	s := &session{store: store, closers: []func() error{closeStore}}

	var factoryOpts []apiclient.Option
	if cfg.APIBaseURL != "" {
		factoryOpts = append(factoryOpts, apiclient.WithBaseURL(cfg.APIBaseURL))
	}
	s.factory, err = apiclient.NewFactory(store, factoryOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	var target auth.TargetConfig
	var launcher browser.Launcher = browser.NewLoopbackLauncher()
	if resolveTarget {
		t, err := auth.ParseTarget(cfg.Target)
		if err != nil {
			s.Close()
			return nil, err
		}
		target, err = auth.ResolveTarget(t, targetSettings(cfg))
		if err != nil {
			s.Close()
			return nil, err
		}
		launcher = newLauncher(target, opts)
	}

	s.controller, err = auth.NewController(auth.Deps{
		Store:     store,
		Clients:   s.factory,
		Exchanger: exchange.NewClient(),
		Launcher:  launcher,
	}, target)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newLauncher(target auth.TargetConfig, opts *rootOptions) browser.Launcher {
	open := func(url string) error {
		fmt.Fprintf(opts.out, "Open this URL to continue signing in:\n\n  %s\n\n", url)
		if opts.noBrowser {
			return nil
		}
		if err := browser.OpenBrowser(url); err != nil {
			log.Warn().Err(err).Msg("could not open the browser")
		}
		return nil
	}

	if target.Target == auth.TargetLoopback {
		return browser.NewLoopbackLauncher(browser.WithOpener(open))
	}

	// Custom scheme and web redirects cannot reach this process, so the user pastes
	// the URL the browser ended up on.
	var launcher *browser.DeepLinkLauncher
	launcher = browser.NewDeepLinkLauncher(func(url string) error {
		if err := open(url); err != nil {
			return err
		}
		fmt.Fprintf(opts.out, "Paste the URL you were redirected to (%s...):\n", target.RedirectURI)
		go readRedirect(opts.in, launcher)
		return nil
	})
	return launcher
}

// readRedirect delivers the first line that matches the pending redirect and dismisses
// the launch when input ends.
func readRedirect(in io.Reader, launcher *browser.DeepLinkLauncher) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if launcher.Deliver(line) {
			return
		}
		log.Warn().Msg("that URL is not the expected redirect, try again")
	}
	launcher.Dismiss()
}

func loadSession(ctx context.Context, opts *rootOptions, resolveTarget bool) (*session, error) {
	s, err := newSession(opts, resolveTarget)
	if err != nil {
		return nil, err
	}
	if err := s.controller.Load(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}
