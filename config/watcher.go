package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/utils"
)

// A Watcher re-reads a config file whenever it changes and hands every valid result to its
// subscribers. Bursts of file events within the debounce delay cause a single reload. Invalid
// configs are logged and skipped.
type Watcher struct {
	logger    logging.Logger
	path      string
	fsw       *fsnotify.Watcher
	debounced func(f func())
	workers   utils.StoppableWorkers
	running   atomic.Bool
	reloads   atomic.Int64

	mu          sync.Mutex
	current     *Config
	subscribers []func(*Config)
}

// NewWatcher starts watching path. The parent directory is watched so that editors replacing the
// file by rename are noticed.
func NewWatcher(ctx context.Context, path string, delay time.Duration, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error resolving config path %q", path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "error creating file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "error watching %q", filepath.Dir(abs)), fsw.Close())
	}
	w := &Watcher{
		logger:    logger,
		path:      filepath.Clean(abs),
		fsw:       fsw,
		debounced: debounce.New(delay),
	}
	w.running.Store(true)
	w.workers = utils.NewStoppableWorkersWithContext(ctx, w.watch)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.CDebugw(ctx, "config file changed", "op", ev.Op.String())
			w.debounced(func() { w.reload(ctx) })
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.CWarnw(ctx, "config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if !w.running.Load() || ctx.Err() != nil {
		return
	}
	cfg, err := Read(ctx, w.path, w.logger)
	if err != nil {
		w.logger.CWarnw(ctx, "ignoring invalid config", "path", w.path, "error", err)
		return
	}
	w.reloads.Inc()

	w.mu.Lock()
	w.current = cfg
	subscribers := append([]func(*Config){}, w.subscribers...)
	w.mu.Unlock()

	w.logger.CInfow(ctx, "config reloaded", "path", w.path)
	for _, fn := range subscribers {
		fn(cfg)
	}
}

// Subscribe registers fn to receive every reloaded config. fn runs on the watcher's goroutine.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Current returns the last config read after a change, or nil if there has been none.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reloads returns how many valid configs have been read.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	err := w.fsw.Close()
	w.workers.Stop()
	return err
}
