package live

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const feedDebounce = 150 * time.Millisecond

// FileFeed turns writes to a SQLite file, made by any process, into wildcard changes on
// a hub. Writes from this process arrive twice; subscriptions conflate them.
type FileFeed struct {
	hub     *Hub
	dbPath  string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool
	done     chan struct{}
}

// StartFileFeed watches the directory holding dbPath until ctx is done or Close is called.
func StartFileFeed(ctx context.Context, hub *Hub, dbPath string, logger *zap.Logger) (*FileFeed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	feed := &FileFeed{
		hub:     hub,
		dbPath:  dbPath,
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go feed.loop(ctx)
	return feed, nil
}

func (f *FileFeed) loop(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			f.stopDebounce()
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handle(event)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("file feed error", zap.Error(err))
		}
	}
}

func (f *FileFeed) handle(event fsnotify.Event) {
	if !f.isDatabaseFile(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
		f.schedule()
	}
}

// isDatabaseFile matches the database and its -wal / -shm / -journal companions.
func (f *FileFeed) isDatabaseFile(path string) bool {
	base := filepath.Base(f.dbPath)
	name := filepath.Base(path)
	return name == base || strings.HasPrefix(name, base+"-")
}

func (f *FileFeed) schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	if f.debounce != nil {
		f.debounce.Stop()
	}
	f.debounce = time.AfterFunc(feedDebounce, func() {
		f.hub.Publish(Change{})
	})
}

func (f *FileFeed) stopDebounce() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.debounce != nil {
		f.debounce.Stop()
		f.debounce = nil
	}
}

// Close stops watching and waits for the loop to exit.
func (f *FileFeed) Close() error {
	f.stopDebounce()
	err := f.watcher.Close()
	<-f.done
	return err
}
