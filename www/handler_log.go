package www

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/logging"
)

type LogLister interface {
	GetLogEntries(ctx context.Context, q database.LogQuery) ([]database.LogEntryRow, bool, error)
}

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

type logPage struct {
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	NextPage *int       `json:"nextPage,omitempty"`
	Entries  []logEntry `json:"entries"`
}

// NewLogHandler pages through the persisted log, newest first. Query
// parameters: page, pageSize and level (DEBUG, INFO, WARN, ERROR).
func NewLogHandler(logger *slog.Logger, logs LogLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := database.LogQuery{Page: 1, PageSize: 25, MinLevel: slog.LevelDebug}
		if v := r.URL.Query().Get("page"); v != "" {
			page, err := strconv.Atoi(v)
			if err != nil || page < 1 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			q.Page = page
		}
		if v := r.URL.Query().Get("pageSize"); v != "" {
			ps, err := strconv.Atoi(v)
			if err != nil || ps < 1 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			q.PageSize = ps
		}
		if v := r.URL.Query().Get("level"); v != "" {
			q.MinLevel = logging.LevelFromString(&v)
		}

		entries, more, err := logs.GetLogEntries(r.Context(), q)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		page := logPage{
			Page:     q.Page,
			PageSize: q.PageSize,
			Entries:  make([]logEntry, 0, len(entries)),
		}
		for _, e := range entries {
			page.Entries = append(page.Entries, logEntry{
				Timestamp: e.Timestamp,
				Level:     e.LevelName(),
				Message:   e.Message,
				Attrs:     e.Attrs,
			})
		}
		if more {
			next := q.Page + 1
			page.NextPage = &next
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			logger.Debug("failed to write log response", slog.Any("error", err))
		}
	}
}
