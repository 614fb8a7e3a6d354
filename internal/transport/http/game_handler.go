package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
)

// GameService is what the REST game routes need.
type GameService interface {
	SaveResult(ctx context.Context, userID string, result domain.GameResult) (string, error)
	Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error)
}

// GameHandler serves results, messages and the leaderboard.
type GameHandler struct {
	service GameService
}

func NewGameHandler(service GameService) *GameHandler {
	return &GameHandler{service: service}
}

type saveResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Save stores a finished game for the signed-in player.
func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var result domain.GameResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	id, err := h.service.SaveResult(r.Context(), userID, result)
	switch {
	case errors.Is(err, domain.ErrInvalidResult):
		writeError(w, http.StatusBadRequest, "Invalid game result")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	case err != nil:
		log.Error().Err(err).Str("user_id", userID).Msg("save game failed")
		writeError(w, http.StatusInternalServerError, "Failed to save game")
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Success: true, ID: id})
}

// Leaderboard lists the best score per player.
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	lb, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard failed")
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type messageResponse struct {
	Message  string `json:"message"`
	Duration string `json:"duration,omitempty"`
}

// ResultMessage returns the congratulation text for a score.
func (h *GameHandler) ResultMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	correct, err1 := strconv.Atoi(q.Get("correct"))
	total, err2 := strconv.Atoi(q.Get("total"))
	if err1 != nil || err2 != nil || total <= 0 || correct < 0 || correct > total {
		writeError(w, http.StatusBadRequest, "Invalid correct or total")
		return
	}
	resp := messageResponse{Message: domain.ResultMessage(correct, total)}
	if raw := q.Get("seconds"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			resp.Duration = domain.FormatDuration(secs)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
