package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-github-auth/internal/validator"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/rs/zerolog/log"
)

// maxRequestBody bounds the token request; a real one is a few hundred bytes.
const maxRequestBody = 64 << 10

const (
	msgMethodNotAllowed = "Method not allowed"
	msgMissingCode      = "Missing code"
)

// TokenHandler redeems an authorization code with GitHub on behalf of a client
// that holds no secret. GitHub's reply is forwarded verbatim, errors included.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthmodel.ExchangeRequest
		err := validator.DecodeReaderAndValidate(http.MaxBytesReader(w, r.Body, maxRequestBody), &req)
		var valErr *validator.ValidationError
		switch {
		case errors.As(err, &valErr):
			s.metrics.exchange(outcomeRejected)
			writeJSONError(w, msgMissingCode, "", http.StatusBadRequest)
			return
		case err != nil:
			s.metrics.exchange(outcomeRejected)
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "Request body must be a JSON object", http.StatusBadRequest)
			return
		}

		creds, rejection := selectCredentials(s.config, req)
		if rejection != nil {
			s.metrics.exchange(outcomeRejected)
			log.Warn().
				Str("client_id", req.ClientID).
				Str("error", rejection.Code).
				Msg("token exchange rejected")
			writeJSONError(w, rejection.Code, rejection.Description, rejection.Status)
			return
		}

		upstreamReq := oauthmodel.ExchangeRequest{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Code:         req.Code,
			CodeVerifier: req.CodeVerifier,
			RedirectURI:  req.RedirectURI,
		}
		resp, err := s.upstream.exchange(r.Context(), upstreamReq)
		if err != nil {
			s.metrics.exchange(outcomeUnavailable)
			logError(r.Method, r.URL.Path, err.Error())
			writeJSONError(w, oauthmodel.ErrorCodeUpstreamUnavailable, "", http.StatusBadGateway)
			return
		}

		s.metrics.exchange(outcomeForwarded)
		w.Header().Set("Content-Type", resp.contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.WriteHeader(resp.status)
		_, _ = w.Write(resp.body)
	}
}

func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", s.config.GetAllowedMethods())
		w.Header().Set("Access-Control-Allow-Headers", s.config.GetAllowedHeaders())
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", s.config.GetAllowedMethods())
		writeJSONError(w, msgMethodNotAllowed, "", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes {"error": ..., "error_description": ...}; an empty
// description is left out.
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	body := map[string]string{"error": errorCode}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, statusCode, body)
}
