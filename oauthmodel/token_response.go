package oauthmodel

import "strings"

// TokenResponse is GitHub's token endpoint response (and the relay's, which forwards it).
// GitHub reports denials such as a reused code with a 200 status and an error body,
// so a response is only successful when AccessToken is non-empty.
type TokenResponse struct {
	// AccessToken is the opaque bearer credential.
	AccessToken string `json:"access_token,omitempty"`

	// TokenType is "bearer".
	TokenType string `json:"token_type,omitempty"`

	// Scope is the comma separated list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// Error is the OAuth error code, e.g. "bad_verification_code".
	Error string `json:"error,omitempty"`

	// ErrorDescription is a human readable description of Error.
	ErrorDescription string `json:"error_description,omitempty"`
}

// OK reports whether the response carries an access token.
func (t *TokenResponse) OK() bool {
	return t != nil && strings.TrimSpace(t.AccessToken) != ""
}

// ErrorDetail joins the error code and description, skipping empty parts.
func (t *TokenResponse) ErrorDetail() string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if t.Error != "" {
		parts = append(parts, t.Error)
	}
	if t.ErrorDescription != "" {
		parts = append(parts, t.ErrorDescription)
	}
	return strings.Join(parts, ": ")
}
