package rest

import (
	"net/http"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/services"
)

type generateRequest struct {
	UserID             string `json:"user_id"`
	Prompt             string `json:"prompt"`
	Limit              int    `json:"limit"`
	SpotifyAccessToken string `json:"spotify_access_token"`
	DryRun             bool   `json:"dry_run"`
}

type imageRequest struct {
	UserID             string `json:"user_id"`
	ImageData          string `json:"image_data"`
	ImageURL           string `json:"image_url"`
	Limit              int    `json:"limit"`
	SpotifyAccessToken string `json:"spotify_access_token"`
}

type historyResponse struct {
	UserID    string                  `json:"user_id"`
	Playlists []domain.PlaylistRecord `json:"playlists"`
}

// GeneratePlaylist handles POST /playlists
func (h *Handler) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	if h.svc.Playlists == nil {
		writeError(w, http.StatusNotImplemented, "playlist generation not configured")
		return
	}
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.Playlists.Generate(r.Context(), services.GenerateInput{
		OwnerID:      req.UserID,
		Prompt:       req.Prompt,
		DesiredCount: h.limit(req.Limit),
		SearchAuth:   userToken(r, req.SpotifyAccessToken),
		DryRun:       req.DryRun,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if req.DryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

// GenerateFromImage handles POST /playlists/image
func (h *Handler) GenerateFromImage(w http.ResponseWriter, r *http.Request) {
	if h.svc.Images == nil {
		writeError(w, http.StatusNotImplemented, "image analysis not configured")
		return
	}
	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.Images.Generate(r.Context(), services.ImageInput{
		OwnerID:      req.UserID,
		ImageBase64:  req.ImageData,
		ImageURL:     req.ImageURL,
		DesiredCount: h.limit(req.Limit),
		SearchAuth:   userToken(r, req.SpotifyAccessToken),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// ListHistory handles GET /users/{id}/playlists
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.svc.Playlists == nil {
		writeError(w, http.StatusNotImplemented, "history not configured")
		return
	}
	userID := r.PathValue("id")

	records, err := h.svc.Playlists.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Playlists: records})
}
