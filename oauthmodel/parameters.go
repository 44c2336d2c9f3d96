package oauthmodel

import (
	"net/url"
	"strings"
)

// AuthorizationParameters holds the parameters sent to GitHub's /login/oauth/authorize endpoint.
type AuthorizationParameters struct {
	// ResponseType is always code.
	ResponseType ResponseType

	// ClientID identifies the OAuth app for the current runtime target.
	ClientID string

	// RedirectURI is where GitHub sends the user after consent.
	// Security: Must exactly match the callback URL registered for ClientID
	RedirectURI string

	// Scopes requested, space separated on the wire.
	Scopes []string

	// State is an opaque value echoed back on the callback (CSRF protection).
	State string

	// CodeChallenge is BASE64URL(SHA256(code_verifier)).
	CodeChallenge string

	// CodeChallengeMethod is always S256.
	CodeChallengeMethod CodeMethodType
}

// Validate checks the parameters before an authorization URL is built.
func (p *AuthorizationParameters) Validate() error {
	if p.ResponseType != "" && p.ResponseType != CodeResponseType {
		return ErrInvalidResponseType
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrMissingClientID
	}
	if !redirectURIValid(p.RedirectURI) {
		return ErrInvalidRedirectUri
	}
	if p.CodeChallengeMethod != "" && p.CodeChallengeMethod != CodeMethodTypeS256 {
		return ErrInvalidCodeChallengeMethod
	}
	return nil
}

// Scope returns the scopes in wire format.
func (p *AuthorizationParameters) Scope() string {
	return strings.Join(p.Scopes, " ")
}

func redirectURIValid(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	// Custom schemes (awesomegithubapp://oauth/callback) have a host but http(s) needs one too
	return u.Scheme != "" && u.Host != "" && u.Fragment == ""
}

// CallbackParameters holds what GitHub appends to the redirect URI.
type CallbackParameters struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallbackParameters reads callback parameters from a query string or form.
func ParseCallbackParameters(values url.Values) CallbackParameters {
	return CallbackParameters{
		Code:             values.Get("code"),
		State:            values.Get("state"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}
}

// IsError reports whether the provider returned an error instead of a code.
func (c CallbackParameters) IsError() bool {
	return c.Error != ""
}
