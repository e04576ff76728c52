package streamsdk

import (
	"net/http"
	"strings"
	"time"
)

// DefaultLoginProvider is the identity provider the login entry point uses.
const DefaultLoginProvider = "google"

// Client is a client for the StreamIt API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// LoginProvider selects /oauth2/authorization/{provider} for LoginURL.
	// Default: "google"
	LoginProvider string
}

// NewClient creates a client for baseURL. A nil httpClient gets a plain
// client with a 10s timeout, which is only useful for unauthenticated
// calls.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	return &Client{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		HTTPClient:    httpClient,
		LoginProvider: DefaultLoginProvider,
	}
}
