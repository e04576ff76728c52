package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

const maxPageLimit = 100

// =====================================
// Channels
// =====================================

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.data.listChannels())
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)

	var req streamsdk.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ChannelName = strings.TrimSpace(req.ChannelName)
	if req.ChannelName == "" {
		writeError(w, http.StatusBadRequest, "channelName is required")
		return
	}

	ch := s.data.createChannel(u, req.ChannelName, req.ChannelDescription, "PUBLIC", time.Now())
	httpx.WriteJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleOpenChannel(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit := streamsdk.DefaultPageLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxPageLimit)
	}

	var cursor int64
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = n
	}

	view, err := s.data.open(id, u.ID, limit, cursor)
	if err != nil {
		writeDataError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) handleJoinChannel(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.data.join(id, u, time.Now()); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaveChannel(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.data.leave(id, u); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := s.data.send(id, u, req.Content, time.Now())
	if err != nil {
		writeDataError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, msg)
}

// =====================================
// Invites
// =====================================

func (s *Server) handleSendInvite(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)

	var req streamsdk.SendInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	channelID, err := strconv.ParseInt(req.ChannelID.String(), 10, 64)
	if err != nil || req.InvitedUserID == "" {
		writeError(w, http.StatusBadRequest, "channelId and invitedUserId are required")
		return
	}

	invitee := jwtx.UserID(req.InvitedUserID)
	if _, ok := s.user(invitee); !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := s.data.invite(channelID, u, invitee, time.Now()); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMyInvites(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	pendingOnly, _ := strconv.ParseBool(r.URL.Query().Get("pendingOnly"))
	httpx.WriteJSON(w, http.StatusOK, s.data.invitesFor(u.ID, pendingOnly))
}

func (s *Server) handleAnswerInvite(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.data.answer(id, u, status, time.Now()); err != nil {
			writeDataError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeDataError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "not a member")
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
