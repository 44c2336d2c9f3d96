package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/rs/zerolog"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// ErrNotLoopback is returned when a redirect URI cannot be served locally.
var ErrNotLoopback = errors.New("redirect uri is not an http loopback address")

// CallbackServer is a temporary 127.0.0.1 HTTP server that accepts exactly one
// OAuth redirect. Later requests are refused so a reload cannot re-trigger the flow.
type CallbackServer struct {
	addr     string
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan Result
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewCallbackServer prepares a server for redirectURI, which must be an http URL on a loopback host.
func NewCallbackServer(redirectURI string, logger zerolog.Logger) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("[NewCallbackServer] %w", err)
	}
	if u.Scheme != "http" || !isLoopbackHost(u.Hostname()) || u.Port() == "" {
		return nil, fmt.Errorf("[NewCallbackServer] %s: %w", redirectURI, ErrNotLoopback)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &CallbackServer{
		addr:     net.JoinHostPort(u.Hostname(), u.Port()),
		path:     path,
		resultCh: make(chan Result, 1),
		errorCh:  make(chan error, 1),
		logger:   logger,
	}, nil
}

// Start binds the listener and serves until Stop or ctx is done.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Debug().Str("addr", s.addr).Str("path", s.path).Msg("callback server listening")
	return nil
}

// Wait blocks until the callback arrives, the server fails, or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (Result, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Addr returns the bound address.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	params := oauthmodel.ParseCallbackParameters(r.URL.Query())
	result := ResultFromCallback(params)

	var err error
	if result.Kind == Success {
		err = successTemplate.Execute(w, nil)
	} else {
		err = errorTemplate.Execute(w, map[string]string{
			"Error":       params.Error,
			"Description": params.ErrorDescription,
		})
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to render callback page")
	}

	s.logger.Debug().Stringer("kind", result.Kind).Msg("callback received")
	select {
	case s.resultCh <- result:
	default:
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
