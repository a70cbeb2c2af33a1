package www

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/angas/dkspot/metrics"
)

const graphNotAvailable = "Graph not available"

// GraphHandler serves the most recently rendered chart. The file is read on
// every request so a new run shows up without a restart.
type GraphHandler struct {
	logger    *slog.Logger
	chartPath string
	maxAge    int
	metrics   *metrics.Metrics
}

func NewGraphHandler(logger *slog.Logger, chartPath string, maxAge int, m *metrics.Metrics) *GraphHandler {
	return &GraphHandler{
		logger:    logger,
		chartPath: chartPath,
		maxAge:    maxAge,
		metrics:   m,
	}
}

func (h *GraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, err := os.ReadFile(h.chartPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.metrics.IncGraphRequest(strconv.Itoa(http.StatusNotFound))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, graphNotAvailable)
			return
		}
		h.logger.Error("failed to read chart", slog.String("path", h.chartPath), slog.Any("error", err))
		h.metrics.IncGraphRequest(strconv.Itoa(http.StatusInternalServerError))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if h.maxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAge))
	}
	h.metrics.IncGraphRequest(strconv.Itoa(http.StatusOK))
	if _, err := w.Write(b); err != nil {
		h.logger.Debug("failed to write chart response", slog.Any("error", err))
	}
}
