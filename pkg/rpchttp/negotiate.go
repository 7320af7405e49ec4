package rpchttp

import (
	"errors"
	"mime"
	"net/http"
)

const jsonContentType = "application/json"

// admissionError is a request rejected before the JSON-RPC layer sees it.
// It is answered with status and a fixed plain-text body.
type admissionError struct {
	status int
	body   string
	// reason labels the rejection in logs and metrics.
	reason string
}

func (e *admissionError) Error() string {
	return "rpchttp: request rejected: " + e.reason
}

var (
	errHostNotAllowed = &admissionError{
		status: http.StatusForbidden,
		body:   "Provided Host header is not whitelisted.\n",
		reason: "host",
	}
	errMethodNotAllowed = &admissionError{
		status: http.StatusMethodNotAllowed,
		body:   "Used HTTP Method is not allowed. POST or OPTIONS is required\n",
		reason: "method",
	}
	errUnsupportedMediaType = &admissionError{
		status: http.StatusUnsupportedMediaType,
		body:   "Supplied content type is not allowed. Content-Type: application/json is required\n",
		reason: "content_type",
	}
	errMalformedRequest = &admissionError{
		status: http.StatusBadRequest,
		body:   "Malformed HTTP request.\n",
		reason: "malformed",
	}
	errBodyTooLarge = &admissionError{
		status: http.StatusRequestEntityTooLarge,
		body:   "Request body is too large.\n",
		reason: "body_too_large",
	}
)

// checkRequest validates the HTTP method, then the content type.
// OPTIONS requests are held to the same content type rule as POST.
func checkRequest(method, contentType string, present, strict bool) *admissionError {
	if method != http.MethodPost && method != http.MethodOptions {
		return errMethodNotAllowed
	}
	if !present || !isJSONContentType(contentType, strict) {
		return errUnsupportedMediaType
	}
	return nil
}

// isJSONContentType matches the media type case-insensitively and ignores
// parameters such as charset. In strict mode the header must be exactly
// application/json.
func isJSONContentType(v string, strict bool) bool {
	if strict {
		return v == jsonContentType
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return false
	}
	return mediaType == jsonContentType
}
