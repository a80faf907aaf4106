package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	errMissingAuth      = errors.New("missing authorization header")
	errInvalidAuth      = errors.New("invalid authorization format")
	errInvalidAuthToken = errors.New("invalid token")
)

// accessTokenParam carries the token for websocket clients, which cannot set
// headers on the upgrade request from a browser.
const accessTokenParam = "access_token"

// withAuth wraps a handler with bearer token authentication.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BearerToken == "" {
			next(w, r)
			return
		}

		token, err := requestToken(r)
		if err == nil && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) != 1 {
			err = errInvalidAuthToken
		}
		if err != nil {
			s.logger.Warn("unauthorized narration request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"reason", err,
			)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		next(w, r)
	}
}

// requestToken extracts the bearer token from the Authorization header, or
// from the access_token query parameter on websocket upgrades.
func requestToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if token := r.URL.Query().Get(accessTokenParam); token != "" {
				return token, nil
			}
		}
		return "", errMissingAuth
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errInvalidAuth
	}
	return token, nil
}
