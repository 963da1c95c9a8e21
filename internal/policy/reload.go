package policy

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 10 * time.Second

// WatcherConfig configures the policy file watcher.
type WatcherConfig struct {
	// Path is the policy file to watch.
	Path string

	// PollInterval is how often to stat the file. Defaults to 10 seconds.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// Watcher polls a file's modification time and signals on change.
type Watcher struct {
	cfg     WatcherConfig
	changes chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. Call Start to begin polling.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Changes delivers one value per detected modification. Bursts coalesce.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Stop stops polling and waits for the goroutine to exit. Safe to call
// multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	last := w.stat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current := w.stat()
			if current.modTime.IsZero() || current.equal(last) {
				continue
			}
			last = current
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

func (s fileStamp) equal(o fileStamp) bool {
	return s.modTime.Equal(o.modTime) && s.size == o.size
}

func (w *Watcher) stat() fileStamp {
	info, err := os.Stat(w.cfg.Path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

// Reloader loads the policy file into a Store.
type Reloader struct {
	store  *Store
	path   string
	logger *slog.Logger
}

// NewReloader creates a reloader for the policy file at path.
func NewReloader(store *Store, path string, logger *slog.Logger) *Reloader {
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{store: store, path: path, logger: logger}
}

// Reload parses the file and swaps it in. On error the active policy is kept.
func (r *Reloader) Reload() error {
	p, err := Load(r.path)
	if err != nil {
		r.logger.Error("policy reload failed, keeping previous policy",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return err
	}
	r.store.Replace(p)
	r.logger.Info("policy reloaded",
		slog.String("path", r.path),
		slog.Int("rules", len(p.Rules)),
	)
	return nil
}

// Run reloads on every value from changes or signals until ctx is done.
// Either channel may be nil.
func (r *Reloader) Run(ctx context.Context, changes <-chan struct{}, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			_ = r.Reload()
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			r.logger.Info("reload signal received", slog.String("signal", sig.String()))
			_ = r.Reload()
		}
	}
}
