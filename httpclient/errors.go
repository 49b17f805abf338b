package httpclient

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RequestFailedMessage is used when neither the response nor the transport
// provide anything more specific.
const RequestFailedMessage = "Request failed with status"

// RequestError is the single error shape surfaced to API call sites.
type RequestError struct {
	Message      string          // Human readable message
	Status       int             // HTTP status, 0 when no response was received
	Data         json.RawMessage // Response body, if any
	NetworkError bool            // True when no response was received
	Err          error           // Underlying transport error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// IsNetworkError reports whether err means no response was received.
func IsNetworkError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.NetworkError
}

// IsClientError reports whether err carries a 4xx response.
func IsClientError(err error) bool {
	status := StatusCode(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

// IsUnauthorized reports whether err carries a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// responseMessage picks the message the backend intended for humans:
// detail, then message, then the status text.
func responseMessage(status int, body []byte) string {
	var payload struct {
		Detail  any `json:"detail"`
		Message any `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if s, ok := payload.Message.(string); ok && s != "" {
			return s
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return RequestFailedMessage
}
