package streamsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingCode  = errors.New("streamsdk: authorization code missing")
	ErrMissingToken = errors.New("streamsdk: response carried no token")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("streamsdk: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsUnauthorized reports whether err is an *APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse builds an *APIError from an error response. The API
// reports problems as {"message": "..."} or {"error": "..."}; anything
// else falls back to the body text or the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Message != "":
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
		case errResp.Error != "":
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" || len(msg) > 512 {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
