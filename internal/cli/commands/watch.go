package commands

import (
	"path/filepath"
	"time"

	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/pkg/watch"
)

// WatchCommand watches the workspace and recomputes the affected set as
// files change, without re-scanning files that did not change.
func WatchCommand(args []string) {
	ctx := cli.RootContext

	p := loadPipeline(ctx)
	logger := cli.Logger

	accept := func(path string) bool {
		rel, err := filepath.Rel(p.ws.Root, path)
		if err != nil {
			rel = path
		}
		if p.ws.Config.ShouldIgnore(rel) {
			return false
		}
		return p.ws.Config.IsSupportedExtension(path)
	}

	w, err := watch.NewWatcher(p.ws.Root, 300*time.Millisecond, accept, logger)
	if err != nil {
		fail(err)
	}
	defer w.Close()

	updater := watch.NewUpdater(p.ws, p.graph, logger)

	out := make(chan []watch.ChangeEvent, 16)
	go func() {
		if err := w.Run(ctx, out); err != nil && ctx.Err() == nil {
			logger.Error("watcher stopped", "err", err)
		}
	}()

	logger.Info("watching for changes", "root", p.ws.Root)
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-out:
			updater.HandleChanges(ctx, batch)
		}
	}
}
