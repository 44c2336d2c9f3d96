package oauthmodel

// ResponseType represents the OAuth 2.0 response type.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow, the only flow GitHub
	// supports for user-to-server tokens.
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"
)
