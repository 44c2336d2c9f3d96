package oauthmodel

import "errors"

var (
	ErrInvalidCodeChallengeMethod = errors.New("invalid code challenge method")
	ErrInvalidRedirectUri         = errors.New("invalid or no redirect uri")
	ErrInvalidResponseType        = errors.New("unsupported response type")
	ErrMissingClientID            = errors.New("missing client id")
)

// OAuth error codes used in token endpoint error payloads.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeClientIDMismatch    = "client_id_mismatch"
	ErrorCodeMissingCodeVerifier = "missing_code_verifier"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeAccessDenied        = "access_denied"
)
