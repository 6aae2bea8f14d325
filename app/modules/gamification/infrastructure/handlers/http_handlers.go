package gamificationhandlers

import (
	"encoding/json"
	"errors"
	"net/http"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/angelgru/gamification/app/observability/attr"
)

// HandleHTTPLeaders serves GET /leaders.
func (h *GamificationHandlers) HandleHTTPLeaders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GamificationHandlers.HandleHTTPLeaders")
	defer span.End()

	rows, err := h.service.CurrentLeaderboard(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load leaderboard", attr.Error(err))
		span.RecordError(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []gamificationtypes.LeaderboardRow{}
	}

	h.writeJSON(w, r, rows)
}

// HandleHTTPStats serves GET /stats?userId=.
func (h *GamificationHandlers) HandleHTTPStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GamificationHandlers.HandleHTTPStats")
	defer span.End()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	stats, err := h.service.StatsForUser(ctx, gamificationtypes.UserID(userID))
	if err != nil {
		if errors.Is(err, gamificationservice.ErrInvalidUserID) {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "Failed to load user stats", attr.UserID(userID), attr.Error(err))
		span.RecordError(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, stats)
}

func (h *GamificationHandlers) HandleHTTPHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *GamificationHandlers) writeJSON(w http.ResponseWriter, r *http.Request, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write response", attr.Error(err))
	}
}
