package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
)

// PlaylistImporter loads a playlist into the catalog.
type PlaylistImporter interface {
	Import(ctx context.Context, playlistID string) (int, error)
}

// AdminHandler guards catalog maintenance behind a static admin token.
type AdminHandler struct {
	importer   PlaylistImporter
	playlistID string
	token      string
	after      func(ctx context.Context)
}

// NewAdminHandler builds the handler. after, when set, runs once an import succeeds.
func NewAdminHandler(importer PlaylistImporter, playlistID, token string, after func(ctx context.Context)) *AdminHandler {
	return &AdminHandler{importer: importer, playlistID: playlistID, token: token, after: after}
}

type importResponse struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Playlist string `json:"playlist"`
}

// ImportPlaylist replaces the catalog with the configured playlist, or ?playlist= when given.
func (h *AdminHandler) ImportPlaylist(w http.ResponseWriter, r *http.Request) {
	if h.token == "" || subtle.ConstantTimeCompare([]byte(bearer(r)), []byte(h.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	playlist := r.URL.Query().Get("playlist")
	if playlist == "" {
		playlist = h.playlistID
	}
	n, err := h.importer.Import(r.Context(), playlist)
	if err != nil {
		log.Error().Err(err).Str("playlist_id", playlist).Msg("playlist import failed")
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoTracks) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, "Failed to import playlist")
		return
	}
	if h.after != nil {
		h.after(r.Context())
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Imported: n, Playlist: playlist})
}
