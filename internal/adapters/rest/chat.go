package rest

import (
	"net/http"

	"github.com/ewilliams-labs/aidj/internal/core/services"
)

type chatRequest struct {
	UserID             string `json:"user_id"`
	SessionID          string `json:"session_id"`
	Message            string `json:"message"`
	Limit              int    `json:"limit"`
	SpotifyAccessToken string `json:"spotify_access_token"`
}

type knowledgeRequest struct {
	Query string `json:"query"`
}

// Chat handles POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.svc.Chat == nil {
		writeError(w, http.StatusNotImplemented, "chat not configured")
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.Chat.Reply(r.Context(), services.ChatInput{
		OwnerID:      req.UserID,
		SessionID:    req.SessionID,
		Message:      req.Message,
		DesiredCount: h.limit(req.Limit),
		SearchAuth:   userToken(r, req.SpotifyAccessToken),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// AskKnowledge handles POST /knowledge
func (h *Handler) AskKnowledge(w http.ResponseWriter, r *http.Request) {
	if h.svc.Knowledge == nil {
		writeError(w, http.StatusNotImplemented, "knowledge queries not configured")
		return
	}
	var req knowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.svc.Knowledge.Ask(r.Context(), req.Query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
