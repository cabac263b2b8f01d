package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pendergraft/contraverify/internal/artifacts"
)

// DefaultSettle is how long an artifact must stay unchanged before it is
// verified in watch mode.
const DefaultSettle = 500 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// Settle delays processing until writes to a file stop
	Settle time.Duration
	// OnResult, if set, is called after every processed artifact
	OnResult func(Result)
}

// Watch verifies every existing artifact, then keeps verifying artifacts
// that are created or rewritten until ctx is cancelled. Files are processed
// one at a time in the calling goroutine.
func (r *Runner) Watch(ctx context.Context, req RunRequest, opts WatchOptions) (*Summary, error) {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if _, err := r.resolver.Get(req.Network); err != nil {
		return nil, err
	}
	dir := r.Dir(req.Network)
	filter := req.discoverOptions()

	paths, err := artifacts.Discover(dir, filter)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	s, err := r.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	verify := func(path string) {
		res := s.Verify(ctx, path)
		if opts.OnResult != nil {
			opts.OnResult(res)
		}
	}

	for _, path := range paths {
		verify(path)
	}
	s.logger.Info("watching for new artifacts", "dir", dir)

	// path -> time of last event
	pending := map[string]time.Time{}
	ticker := time.NewTicker(opts.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Close(ctx), nil

		case ev, ok := <-w.Events:
			if !ok {
				return s.Close(ctx), nil
			}
			name := filepath.Base(ev.Name)
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !artifacts.IsArtifactFile(name) || !filter.Match(name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return s.Close(ctx), nil
			}
			s.logger.Warn("watcher error", "error", err)

		case now := <-ticker.C:
			for _, path := range settled(pending, now, opts.Settle) {
				delete(pending, path)
				verify(path)
			}
		}
	}
}

// settled returns the pending paths quiet for at least d, in name order.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var out []string
	for path, last := range pending {
		if now.Sub(last) >= d {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}
