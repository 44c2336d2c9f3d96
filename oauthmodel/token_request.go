package oauthmodel

// ExchangeRequest is the JSON body posted to a token endpoint, either GitHub's own
// endpoint or the relay, to redeem an authorization code.
type ExchangeRequest struct {
	// ClientID identifies the registered OAuth app (native and web builds are
	// registered as distinct apps).
	ClientID string `json:"client_id,omitempty"`

	// ClientSecret is only ever set by the relay on the upstream call.
	// Security: Never log or expose this value
	ClientSecret string `json:"client_secret,omitempty"`

	// Code is the single-use authorization code from the redirect callback.
	Code string `json:"code" validate:"required"`

	// CodeVerifier is the PKCE secret generated for the same attempt as the code.
	CodeVerifier string `json:"code_verifier,omitempty"`

	// RedirectURI must match the one sent on the authorization request.
	RedirectURI string `json:"redirect_uri,omitempty"`
}
