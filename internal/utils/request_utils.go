package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go-medsearch-proxy/internal/apperrors"
)

// DecodeJSONBody reads at most maxBytes of the request body and decodes it
// into dst. Any failure is returned as a validation error.
func DecodeJSONBody(r *http.Request, maxBytes int64, dst interface{}) error {
	if r.Body == nil {
		return apperrors.NewValidationError("body", "request body is required")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return apperrors.NewValidationError("body", "failed to read request body")
	}
	if int64(len(body)) > maxBytes {
		return apperrors.NewValidationError("body", fmt.Sprintf("request body exceeds %d bytes", maxBytes))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.NewValidationError("body", "request body is required")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return apperrors.NewValidationError("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return apperrors.NewValidationError(typeErr.Field, fmt.Sprintf("expected %s", typeErr.Type))
		default:
			return apperrors.NewValidationError("body", "malformed JSON")
		}
	}

	return nil
}

// MaskSecret masks a credential for logging
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Snippet returns at most max bytes of body as a single-line string, cut on
// a rune boundary
func Snippet(body []byte, max int) string {
	if len(body) > max {
		body = body[:max]
		for len(body) > 0 && !utf8.Valid(body) {
			body = body[:len(body)-1]
		}
	}
	return strings.Join(strings.Fields(string(body)), " ")
}
