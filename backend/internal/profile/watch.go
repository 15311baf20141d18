package profile

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// ChangeFunc receives a profile whose file changed on disk, or the error that
// loading it produced.
type ChangeFunc func(name string, p Profile, err error)

// Watch reports edited profile files until ctx is done. Bursts of writes to
// the same file are coalesced over delay. It blocks.
func (s *Store) Watch(ctx context.Context, delay time.Duration, fn ChangeFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating profile watcher")
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return errors.Wrapf(err, "watching %s", s.dir)
	}

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
	)
	flush := func() {
		mu.Lock()
		names := pending
		pending = map[string]struct{}{}
		mu.Unlock()
		for name := range names {
			p, err := s.Load(name)
			fn(name, p, err)
		}
	}
	debounced := debounce.New(delay)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(ev.Name)
			if filepath.Ext(base) != fileExt || strings.HasPrefix(base, ".") {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			mu.Lock()
			pending[strings.TrimSuffix(base, fileExt)] = struct{}{}
			mu.Unlock()
			debounced(flush)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnw("profile watcher error", "error", err)
		}
	}
}
