package browser

import (
	"context"

	"github.com/jrsteele09/go-github-auth/oauthmodel"
)

// Kind is the terminal outcome of a browser consent round trip.
type Kind int

const (
	// Success carries an authorization code.
	Success Kind = iota + 1
	// Cancelled means the user closed or denied consent. It is an expected outcome.
	Cancelled
	// Error means the provider or the runtime reported a failure.
	Error
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Result is produced exactly once per Launch.
type Result struct {
	Kind   Kind
	Code   string
	State  string
	Reason string
}

// Launcher opens the authorization URL in a browser and suspends until the redirect
// to redirectURI arrives or the user abandons consent.
// The returned error is reserved for failures to launch at all; provider errors are
// reported as a Result with Kind Error.
type Launcher interface {
	Launch(ctx context.Context, authURL, redirectURI string) (Result, error)
}

// ResultFromCallback maps callback parameters to a Result. A denied consent is a cancellation.
func ResultFromCallback(p oauthmodel.CallbackParameters) Result {
	switch {
	case p.Error == oauthmodel.ErrorCodeAccessDenied:
		return Result{Kind: Cancelled, State: p.State, Reason: p.Error}
	case p.IsError():
		reason := p.Error
		if p.ErrorDescription != "" {
			reason += ": " + p.ErrorDescription
		}
		return Result{Kind: Error, State: p.State, Reason: reason}
	case p.Code == "":
		return Result{Kind: Error, State: p.State, Reason: "callback carried no authorization code"}
	default:
		return Result{Kind: Success, Code: p.Code, State: p.State}
	}
}
