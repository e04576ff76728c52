package streamsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListChannels returns the channels visible to the caller.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.call(ctx, http.MethodGet, "/api/channels", nil, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateChannel creates a channel owned by the caller.
func (c *Client) CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error) {
	var ch Channel
	if err := c.call(ctx, http.MethodPost, "/api/channels", nil, req, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// OpenChannel returns the caller's membership and one page of messages.
func (c *Client) OpenChannel(ctx context.Context, id ID, page Page) (*ChannelView, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if page.Cursor != "" {
		query.Set("cursor", page.Cursor.String())
	}

	var view ChannelView
	if err := c.call(ctx, http.MethodGet, channelPath(id, "open"), query, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// JoinChannel adds the caller to a channel.
func (c *Client) JoinChannel(ctx context.Context, id ID) error {
	return c.call(ctx, http.MethodPost, channelPath(id, "join"), nil, nil, nil)
}

// LeaveChannel removes the caller from a channel.
func (c *Client) LeaveChannel(ctx context.Context, id ID) error {
	return c.call(ctx, http.MethodPost, channelPath(id, "leave"), nil, nil, nil)
}

// TestSendMessage posts a message to a channel.
func (c *Client) TestSendMessage(ctx context.Context, id ID, content string) error {
	return c.call(ctx, http.MethodPost, channelPath(id, "test-send"), nil, testSendRequest{Content: content}, nil)
}

func channelPath(id ID, action string) string {
	return "/api/channels/" + url.PathEscape(id.String()) + "/" + action
}
