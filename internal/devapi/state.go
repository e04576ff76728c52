package devapi

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("forbidden")
	errConflict  = errors.New("conflict")
)

const (
	inviteAccepted = "ACCEPTED"
	inviteRejected = "REJECTED"
	inviteExpired  = "EXPIRED"

	inviteTTL = 72 * time.Hour

	roleOwner  = "OWNER"
	roleMember = "MEMBER"
)

type member struct {
	role     string
	joinedAt time.Time
}

type channel struct {
	id          int64
	name        string
	description string
	kind        string
	createdOn   time.Time
	members     map[jwtx.UserID]member
	// messages are kept oldest first
	messages []streamsdk.Message
}

type invite struct {
	id        int64
	channelID int64
	invitee   jwtx.UserID
	invitedBy User
	status    string
	createdAt time.Time
	expiresAt time.Time
}

// chatData is the in-memory channel and invite state.
type chatData struct {
	mu       sync.Mutex
	nextID   int64
	channels []*channel
	invites  []*invite
}

func newChatData() *chatData {
	return &chatData{nextID: 100}
}

func (d *chatData) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *chatData) createChannel(owner User, name, description, kind string, now time.Time) streamsdk.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := &channel{
		id:          d.id(),
		name:        name,
		description: description,
		kind:        kind,
		createdOn:   now,
		members: map[jwtx.UserID]member{
			owner.ID: {role: roleOwner, joinedAt: now},
		},
	}
	d.channels = append(d.channels, ch)
	return ch.view()
}

func (d *chatData) listChannels() []streamsdk.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]streamsdk.Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		out = append(out, ch.view())
	}
	return out
}

// open returns the viewer's membership and up to limit messages older than
// cursor, oldest first. nextCursor is set when older messages remain.
func (d *chatData) open(id int64, viewer jwtx.UserID, limit int, cursor int64) (streamsdk.ChannelView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channel(id)
	if ch == nil {
		return streamsdk.ChannelView{}, errNotFound
	}

	view := streamsdk.ChannelView{Messages: []streamsdk.Message{}}
	m, ok := ch.members[viewer]
	if !ok {
		return view, nil
	}
	view.Viewer = streamsdk.Viewer{
		IsMember: true,
		Role:     m.role,
		Status:   "ACTIVE",
		JoinedAt: m.joinedAt.UTC().Format(time.RFC3339),
	}

	end := len(ch.messages)
	if cursor > 0 {
		end = slices.IndexFunc(ch.messages, func(msg streamsdk.Message) bool {
			n, _ := strconv.ParseInt(msg.ID.String(), 10, 64)
			return n >= cursor
		})
		if end < 0 {
			end = len(ch.messages)
		}
	}
	start := max(end-limit, 0)

	view.Messages = append(view.Messages, ch.messages[start:end]...)
	if start > 0 {
		next := view.Messages[0].ID
		view.NextCursor = &next
	}
	return view, nil
}

func (d *chatData) join(id int64, u User, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channel(id)
	if ch == nil {
		return errNotFound
	}
	if _, ok := ch.members[u.ID]; !ok {
		ch.members[u.ID] = member{role: roleMember, joinedAt: now}
	}
	return nil
}

func (d *chatData) leave(id int64, u User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channel(id)
	if ch == nil {
		return errNotFound
	}
	if _, ok := ch.members[u.ID]; !ok {
		return errForbidden
	}
	delete(ch.members, u.ID)
	return nil
}

func (d *chatData) send(id int64, u User, content string, now time.Time) (streamsdk.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channel(id)
	if ch == nil {
		return streamsdk.Message{}, errNotFound
	}
	if _, ok := ch.members[u.ID]; !ok {
		return streamsdk.Message{}, errForbidden
	}

	msg := streamsdk.Message{
		ID:      streamsdk.ID(strconv.FormatInt(d.id(), 10)),
		Content: content,
		SentAt:  now.UTC().Format(time.RFC3339Nano),
		Sender: streamsdk.Sender{
			ID:   streamsdk.ID(u.ID),
			Name: u.Name,
		},
	}
	ch.messages = append(ch.messages, msg)
	return msg, nil
}

func (d *chatData) invite(channelID int64, from User, to jwtx.UserID, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := d.channel(channelID)
	if ch == nil {
		return errNotFound
	}
	if _, ok := ch.members[from.ID]; !ok {
		return errForbidden
	}
	if _, ok := ch.members[to]; ok {
		return errConflict
	}
	for _, inv := range d.invites {
		if inv.channelID == channelID && inv.invitee == to && inv.status == streamsdk.InviteStatusPending {
			return errConflict
		}
	}

	d.invites = append(d.invites, &invite{
		id:        d.id(),
		channelID: channelID,
		invitee:   to,
		invitedBy: from,
		status:    streamsdk.InviteStatusPending,
		createdAt: now,
		expiresAt: now.Add(inviteTTL),
	})
	return nil
}

func (d *chatData) invitesFor(u jwtx.UserID, pendingOnly bool) []streamsdk.Invite {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []streamsdk.Invite{}
	for _, inv := range d.invites {
		if inv.invitee != u {
			continue
		}
		if pendingOnly && inv.status != streamsdk.InviteStatusPending {
			continue
		}
		out = append(out, d.inviteView(inv))
	}
	return out
}

func (d *chatData) answer(id int64, u User, status string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := slices.IndexFunc(d.invites, func(inv *invite) bool { return inv.id == id })
	if idx < 0 {
		return errNotFound
	}
	inv := d.invites[idx]
	if inv.invitee != u.ID {
		return errForbidden
	}
	if inv.status != streamsdk.InviteStatusPending {
		return errConflict
	}

	inv.status = status
	if status != inviteAccepted {
		return nil
	}

	ch := d.channel(inv.channelID)
	if ch == nil {
		return errNotFound
	}
	if _, ok := ch.members[u.ID]; !ok {
		ch.members[u.ID] = member{role: roleMember, joinedAt: now}
	}
	return nil
}

// expireInvites marks pending invites past their deadline as expired and
// returns how many changed.
func (d *chatData) expireInvites(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int
	for _, inv := range d.invites {
		if inv.status == streamsdk.InviteStatusPending && now.After(inv.expiresAt) {
			inv.status = inviteExpired
			n++
		}
	}
	return n
}

func (d *chatData) channel(id int64) *channel {
	for _, ch := range d.channels {
		if ch.id == id {
			return ch
		}
	}
	return nil
}

func (d *chatData) inviteView(inv *invite) streamsdk.Invite {
	var name string
	if ch := d.channel(inv.channelID); ch != nil {
		name = ch.name
	}
	return streamsdk.Invite{
		InviteID:      streamsdk.ID(strconv.FormatInt(inv.id, 10)),
		ChannelID:     streamsdk.ID(strconv.FormatInt(inv.channelID, 10)),
		ChannelName:   name,
		Status:        inv.status,
		InvitedByID:   streamsdk.ID(inv.invitedBy.ID),
		InvitedByName: inv.invitedBy.Name,
		CreatedAt:     inv.createdAt.UTC().Format(time.RFC3339),
		ExpiresAt:     inv.expiresAt.UTC().Format(time.RFC3339),
	}
}

func (ch *channel) view() streamsdk.Channel {
	return streamsdk.Channel{
		ID:                 streamsdk.ID(strconv.FormatInt(ch.id, 10)),
		ChannelName:        ch.name,
		ChannelDescription: ch.description,
		Type:               ch.kind,
		CreatedOn:          ch.createdOn.UTC().Format(time.RFC3339),
	}
}
