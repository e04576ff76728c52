package streamsdk

import (
	"context"
	"encoding/json"
	"net/http"
)

// Public calls the unauthenticated probe endpoint.
func (c *Client) Public(ctx context.Context) (json.RawMessage, error) {
	return c.probe(ctx, "/public")
}

// Private calls the probe endpoint that requires a bearer token.
func (c *Client) Private(ctx context.Context) (json.RawMessage, error) {
	return c.probe(ctx, "/private")
}

// Me returns what the server knows about the caller.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.probe(ctx, "/me")
}

// Get performs an authenticated GET of an arbitrary API path.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.probe(ctx, path)
}

func (c *Client) probe(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Liveness checks if the service is alive.
func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/livez", nil, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}
