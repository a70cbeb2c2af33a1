package www

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angas/dkspot/database"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

type RunLister interface {
	GetRecentPipelineRuns(ctx context.Context, limit int) ([]database.PipelineRunRow, error)
}

type RunsHandler struct {
	logger *slog.Logger
	runs   RunLister
}

func NewRunsHandler(logger *slog.Logger, runs RunLister) *RunsHandler {
	return &RunsHandler{logger: logger, runs: runs}
}

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	rows, err := h.runs.GetRecentPipelineRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get pipeline runs", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []database.PipelineRunRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		h.logger.Debug("failed to write runs response", slog.Any("error", err))
	}
}
