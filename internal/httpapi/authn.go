package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"relief.org/internal/auth"
	"relief.org/internal/obs"
)

const (
	authHeader      = "Authorization"
	bearer          = "Bearer "
	queryTokenParam = "token"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errAuthScheme   = errors.New("invalid authorization scheme")
)

// requireAuth is the request gate: it verifies the caller's token and places
// the claims in the request context. Every rejection looks the same to the
// client; the cause is only logged.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.tokens == nil {
			a.rejectUnauthenticated(w, r, "no_verifier", errors.New("token verification not configured"))
			return
		}
		token, err := a.tokenFromRequest(r)
		if err != nil {
			a.rejectUnauthenticated(w, r, "missing", err)
			return
		}
		claims, err := a.tokens.Verify(token)
		if err != nil {
			a.rejectUnauthenticated(w, r, failureReason(err), err)
			return
		}
		ctx := auth.ContextWithClaims(r.Context(), *claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) tokenFromRequest(r *http.Request) (string, error) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err == nil {
		return token, nil
	}
	// Any request without a Bearer credential may use the query channel,
	// including one carrying a different Authorization scheme.
	if a.allowQueryToken {
		if q := strings.TrimSpace(r.URL.Query().Get(queryTokenParam)); q != "" {
			return q, nil
		}
	}
	return "", err
}

func (a *API) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, reason string, cause error) {
	obs.AuthFailures.WithLabelValues(reason).Inc()
	obs.Logger().Warn("request unauthenticated",
		"request_id", RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"reason", reason,
		"error", cause,
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="relief"`)
	writeError(w, r, http.StatusUnauthorized, "unauthenticated")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenSignature):
		return "signature"
	case errors.Is(err, auth.ErrTokenScope):
		return "scope"
	default:
		return "malformed"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if strings.EqualFold(header, strings.TrimSpace(bearer)) {
		return "", errMissingToken
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errAuthScheme
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
