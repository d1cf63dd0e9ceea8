package broker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/presencekit/session-broker/internal/httpserver"
	"github.com/presencekit/session-broker/internal/metrics"
	"github.com/presencekit/session-broker/internal/webui"
)

const maxRequestBodyBytes = 64 << 10

// Client-facing error messages. The join message is shared by the missing-id
// and rejected-id paths on purpose.
const (
	msgInvalidBody  = "invalid request body"
	msgInvalidName  = "name is required and must be at most 100 characters"
	msgChatNotFound = "chat not found"
	msgProviderDown = "session provider unavailable"
	msgInternal     = "internal error"
)

func (b *Broker) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", b.handleLegacyPage)
	mux.HandleFunc("GET /presence", b.handlePresence)
	mux.HandleFunc("POST /users", b.handleIssueUserToken)
	mux.HandleFunc("POST /chats", b.handleCreateChat)
	mux.HandleFunc("GET /chats", b.handleJoinChat)
}

func (b *Broker) handlePresence(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, b.PresenceInfo())
}

type issueUserTokenRequest struct {
	Name string `json:"name"`
}

type issueUserTokenResponse struct {
	Token string `json:"token"`
}

func (b *Broker) handleIssueUserToken(w http.ResponseWriter, r *http.Request) {
	var req issueUserTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		metrics.RejectedRequests.WithLabelValues(metrics.ReasonBadRequest).Inc()
		httpserver.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	token, err := b.IssueUserToken(req.Name)
	switch {
	case errors.Is(err, ErrInvalidName):
		httpserver.WriteError(w, http.StatusBadRequest, msgInvalidName)
		return
	case err != nil:
		b.log.Error("issue user token failed", "err", err)
		httpserver.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, issueUserTokenResponse{Token: token})
}

type createChatRequest struct {
	// Invitee is accepted but unused: reserved for an authorization layer
	// that doesn't exist yet.
	Invitee string `json:"invitee"`
}

func (b *Broker) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	// The request body is optional; tolerate an empty one.
	var req createChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		metrics.RejectedRequests.WithLabelValues(metrics.ReasonBadRequest).Inc()
		httpserver.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	chat, err := b.CreateChat(r.Context())
	if err != nil {
		b.log.Error("create chat failed", "err", err)
		httpserver.WriteError(w, http.StatusBadGateway, msgProviderDown)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, chat)
}

func (b *Broker) handleJoinChat(w http.ResponseWriter, r *http.Request) {
	chat, err := b.JoinChat(r.URL.Query().Get("sessionId"))
	switch {
	case errors.Is(err, ErrUnknownChat):
		httpserver.WriteError(w, http.StatusNotFound, msgChatNotFound)
		return
	case err != nil:
		b.log.Error("join chat failed", "err", err, "session_id", r.URL.Query().Get("sessionId"))
		httpserver.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, chat)
}

func (b *Broker) handleLegacyPage(w http.ResponseWriter, r *http.Request) {
	sess, err := b.LegacyPageSession()
	if err != nil {
		b.log.Error("render legacy page failed", "err", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webui.Render(w, webui.PageData{
		APIKey:    sess.APIKey,
		SessionID: sess.SessionID,
		Token:     sess.Token,
	}); err != nil {
		b.log.Error("render legacy page failed", "err", err)
	}
}
