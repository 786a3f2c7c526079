package watchfolder

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure Backend implements the optional interface.
var _ driven.WakeupBackend = (*Backend)(nil)

// Wakeups emits a signal whenever the watched directory changes, so the
// scheduler can check early instead of waiting for the interval tick.
func (b *Backend) Wakeups(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(b.source.ConfigValue("path", "")); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
					// Coalesce bursts: a pending signal is enough.
					select {
					case out <- struct{}{}:
					default:
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
