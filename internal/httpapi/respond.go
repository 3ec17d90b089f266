package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"relief.org/internal/auth"
	"relief.org/internal/obs"
	"relief.org/internal/relief"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeVersioned sets ETag to the record version so clients can echo it in If-Match.
func writeVersioned(w http.ResponseWriter, code int, version int64, v any) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
	writeJSON(w, code, v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &tooLarge):
			return errors.New("request body too large")
		}
		return errors.New("malformed request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// expectedVersion merges the version from the body with an If-Match header.
// Zero means the caller supplied neither.
func expectedVersion(r *http.Request, body *int64) (int64, error) {
	var fromHeader int64
	if raw := strings.TrimSpace(r.Header.Get("If-Match")); raw != "" {
		raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return 0, errors.New("If-Match must carry a positive record version")
		}
		fromHeader = v
	}
	if body == nil {
		return fromHeader, nil
	}
	if *body <= 0 {
		return 0, errors.New("version must be positive")
	}
	if fromHeader != 0 && fromHeader != *body {
		return 0, errors.New("If-Match and body version disagree")
	}
	return *body, nil
}

func handleReliefError(w http.ResponseWriter, r *http.Request, err error) {
	var rv *relief.ReferentialViolation
	switch {
	case errors.As(err, &rv):
		writeError(w, r, http.StatusBadRequest, rv.Error())
	case errors.Is(err, relief.ErrInvalidInput), errors.Is(err, relief.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "relief: "))
	case errors.Is(err, relief.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, relief.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, "record was modified; reload and retry")
	case errors.Is(err, relief.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, strings.TrimPrefix(err.Error(), "relief: "))
	default:
		obs.Logger().Error("relief operation failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: "))
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrLocked):
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "too many failed attempts")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	default:
		obs.Logger().Error("auth operation failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
