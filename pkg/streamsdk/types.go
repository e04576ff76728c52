package streamsdk

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is a resource identifier. The API sends numeric ids, but cursors and
// some ids arrive as strings, so both are accepted.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil && id[0] != '+' {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// =====================================
// Auth
// =====================================

// TokenResponse is returned by the exchange and refresh endpoints.
type TokenResponse struct {
	Token string `json:"token"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}

// =====================================
// Channels
// =====================================

// Channel is an entry of the channel list.
type Channel struct {
	ID                 ID     `json:"id"`
	ChannelName        string `json:"channelName"`
	ChannelDescription string `json:"channelDescription,omitempty"`
	Type               string `json:"type,omitempty"`
	CreatedOn          string `json:"createdOn,omitempty"`
}

// CreateChannelRequest is the body of POST /api/channels.
type CreateChannelRequest struct {
	ChannelName        string `json:"channelName"`
	ChannelDescription string `json:"channelDescription,omitempty"`
}

// Page selects a window of channel messages. A zero Limit uses
// DefaultPageLimit; an empty Cursor starts from the newest message.
type Page struct {
	Limit  int
	Cursor ID
}

// DefaultPageLimit is the page size used when Page.Limit is zero.
const DefaultPageLimit = 30

// ChannelView is the response of opening a channel.
type ChannelView struct {
	Viewer     Viewer    `json:"viewer"`
	Messages   []Message `json:"messages"`
	NextCursor *ID       `json:"nextCursor"`
}

// HasMore reports whether an older page exists.
func (v ChannelView) HasMore() bool {
	return v.NextCursor != nil && *v.NextCursor != ""
}

// Viewer is the caller's membership in a channel.
type Viewer struct {
	IsMember bool   `json:"isMember"`
	Role     string `json:"role,omitempty"`
	Status   string `json:"status,omitempty"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// Message is a chat message.
type Message struct {
	ID      ID     `json:"id"`
	Content string `json:"content"`
	SentAt  string `json:"sentAt,omitempty"`
	Sender  Sender `json:"sender"`
}

// Sender identifies the author of a message.
type Sender struct {
	ID              ID     `json:"id"`
	Name            string `json:"name,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

type testSendRequest struct {
	Content string `json:"content"`
}

// =====================================
// Invites
// =====================================

// InviteStatusPending marks an invite that has not been answered.
const InviteStatusPending = "PENDING"

// Invite is an invitation to join a channel.
type Invite struct {
	InviteID      ID     `json:"inviteId"`
	ChannelID     ID     `json:"channelId"`
	ChannelName   string `json:"channelName"`
	Status        string `json:"status"`
	InvitedByID   ID     `json:"invitedById"`
	InvitedByName string `json:"invitedByName"`
	CreatedAt     string `json:"createdAt,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

// SendInviteRequest is the body of POST /api/invites/send.
type SendInviteRequest struct {
	ChannelID     ID `json:"channelId"`
	InvitedUserID ID `json:"invitedUserId"`
}

// =====================================
// Health
// =====================================

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version,omitempty"`
}
