package server

import (
	"net/http"

	"github.com/jrsteele09/go-github-auth/internal/config"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
)

const msgNotConfigured = "Worker OAuth credentials are not configured"

// rejection is a relay-side refusal, answered before GitHub is contacted.
type rejection struct {
	Status      int
	Code        string
	Description string
}

var errNotConfigured = &rejection{Status: http.StatusInternalServerError, Code: msgNotConfigured}

// selectCredentials picks the credential pair for req.
//
// With a client_id the pair holding that id is used and a PKCE verifier is required.
// Without one the web pair is preferred, then the fallback pair.
func selectCredentials(cfg config.OAuthConfig, req oauthmodel.ExchangeRequest) (config.Credentials, *rejection) {
	web := cfg.GetWebCredentials()
	fallback := cfg.GetFallbackCredentials()

	if !web.Complete() && !fallback.Complete() {
		return config.Credentials{}, errNotConfigured
	}

	if req.ClientID == "" {
		if web.Complete() {
			return web, nil
		}
		return fallback, nil
	}

	var chosen *config.Credentials
	for _, pair := range []config.Credentials{web, fallback} {
		if pair.ClientID == req.ClientID {
			chosen = &pair
			break
		}
	}
	if chosen == nil {
		return config.Credentials{}, &rejection{
			Status:      http.StatusBadRequest,
			Code:        oauthmodel.ErrorCodeClientIDMismatch,
			Description: "client_id does not match a configured OAuth app",
		}
	}
	if !chosen.Complete() {
		return config.Credentials{}, errNotConfigured
	}
	if req.CodeVerifier == "" {
		return config.Credentials{}, &rejection{
			Status:      http.StatusBadRequest,
			Code:        oauthmodel.ErrorCodeMissingCodeVerifier,
			Description: "code_verifier is required",
		}
	}
	return *chosen, nil
}
