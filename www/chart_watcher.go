package www

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var reloadMessage = []byte("reload")

// watchChart tells connected pages to reload whenever the chart file is
// replaced. The directory is watched since the file is swapped by rename.
func (s *Server) watchChart(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create chart watcher: %w", err)
	}

	dir, name := filepath.Split(s.chartPath)
	if dir == "" {
		dir = "."
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch chart directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					s.logger.Debug("chart replaced, notifying clients", slog.Int("clients", s.hub.ClientCount()))
					s.hub.broadcast(ctx, reloadMessage)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("error watching chart", slog.Any("error", err))
			}
		}
	}()

	return nil
}
