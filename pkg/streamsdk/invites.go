package streamsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// SendInvite invites a user to a channel.
func (c *Client) SendInvite(ctx context.Context, req SendInviteRequest) error {
	return c.call(ctx, http.MethodPost, "/api/invites/send", nil, req, nil)
}

// MyInvites lists invites addressed to the caller.
func (c *Client) MyInvites(ctx context.Context, pendingOnly bool) ([]Invite, error) {
	query := url.Values{"pendingOnly": {strconv.FormatBool(pendingOnly)}}

	var invites []Invite
	if err := c.call(ctx, http.MethodGet, "/api/invites/my", query, nil, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// AcceptInvite accepts an invite and joins its channel.
func (c *Client) AcceptInvite(ctx context.Context, id ID) error {
	return c.call(ctx, http.MethodPost, invitePath(id, "accept"), nil, nil, nil)
}

// RejectInvite declines an invite.
func (c *Client) RejectInvite(ctx context.Context, id ID) error {
	return c.call(ctx, http.MethodPost, invitePath(id, "reject"), nil, nil, nil)
}

func invitePath(id ID, action string) string {
	return "/api/invites/" + url.PathEscape(id.String()) + "/" + action
}
