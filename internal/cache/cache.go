// Package cache is the owned handle over the local chat cache. It is the only writer of
// the SQLite tables and publishes a change on its hub after every committed write.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adamavenir/chatcache/internal/config"
	"github.com/adamavenir/chatcache/internal/core"
	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/live"
	"github.com/adamavenir/chatcache/internal/readpos"
	"github.com/adamavenir/chatcache/internal/session"
	"github.com/adamavenir/chatcache/internal/vault"
	"go.uber.org/zap"
)

// Cache owns one SQLite handle, its change hub and the encrypted vault.
type Cache struct {
	db        *sql.DB
	hub       *live.Hub
	layout    core.Layout
	logger    *zap.Logger
	pageSize  int
	retention time.Duration

	vault     *vault.Vault
	vaultErr  error
	positions *readpos.Tracker
	creds     *session.Credentials

	now func() time.Time

	mu     sync.Mutex
	feed   *live.FileFeed
	closed bool
}

// Open opens the cache under cfg.DataDir. A schema version mismatch drops and recreates
// the cache tables. A vault that cannot be opened does not fail Open; credential and
// read-position operations then return vault.ErrStorageUnavailable.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cache")

	layout, err := core.EnsureLayout(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	conn, err := db.OpenDatabase(layout.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	rebuilt, err := db.InitSchema(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	if rebuilt {
		logger.Warn("cache schema version changed, rebuilt empty tables",
			zap.Int("version", db.SchemaVersion),
			zap.String("path", layout.DBPath))
	}

	c := &Cache{
		db:        conn,
		hub:       live.NewHub(),
		layout:    layout,
		logger:    logger,
		pageSize:  cfg.Cache.PageSize,
		retention: cfg.Cache.Retention.Duration(),
		now:       time.Now,
	}
	if c.pageSize <= 0 {
		c.pageSize = db.DefaultPageSize
	}
	if c.retention <= 0 {
		c.retention = config.DefaultRetention
	}

	v, err := vault.Open(layout.VaultDir)
	if err != nil {
		logger.Named("vault").Error("secure storage unavailable", zap.Error(err))
		c.vaultErr = err
	} else {
		c.attachVault(v)
	}

	logger.Debug("cache opened", zap.String("path", layout.DBPath))
	return c, nil
}

// OpenWithVault wires an already opened database and vault. It is used by tests and by
// callers that manage their own storage.
func OpenWithVault(conn *sql.DB, v *vault.Vault, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.InitSchema(conn); err != nil {
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	c := &Cache{
		db:        conn,
		hub:       live.NewHub(),
		logger:    logger.Named("cache"),
		pageSize:  db.DefaultPageSize,
		retention: config.DefaultRetention,
		now:       time.Now,
	}
	c.attachVault(v)
	return c, nil
}

func (c *Cache) attachVault(v *vault.Vault) {
	c.vault = v
	c.positions = readpos.New(v)
	c.creds = session.New(v)
}

// Hub exposes the change hub for custom subscriptions.
func (c *Cache) Hub() *live.Hub {
	return c.hub
}

// Layout returns the on-disk layout the cache was opened with.
func (c *Cache) Layout() core.Layout {
	return c.layout
}

// PageSize is the default page size for incremental queries.
func (c *Cache) PageSize() int {
	return c.pageSize
}

// FollowExternalWrites starts an fsnotify feed so writes made to the database by other
// processes reach this cache's subscribers.
func (c *Cache) FollowExternalWrites(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("cache is closed")
	}
	if c.feed != nil || c.layout.DBPath == "" {
		return nil
	}
	feed, err := live.StartFileFeed(ctx, c.hub, c.layout.DBPath, c.logger.Named("live"))
	if err != nil {
		return fmt.Errorf("watch cache files: %w", err)
	}
	c.feed = feed
	return nil
}

// Close ends every subscription and releases the database. It is safe to call twice.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	feed := c.feed
	c.feed = nil
	c.mu.Unlock()

	if feed != nil {
		_ = feed.Close()
	}
	c.hub.Close()
	return c.db.Close()
}

func (c *Cache) publish(table, chatID string) {
	c.hub.Publish(live.Change{Table: table, ChatID: chatID})
}

// writeFailed logs constraint violations, which indicate a malformed row from the caller.
func (c *Cache) writeFailed(op string, err error) error {
	if errors.Is(err, db.ErrConstraint) {
		c.logger.Error("cache write rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (c *Cache) secure() error {
	if c.vault == nil {
		if c.vaultErr != nil {
			return c.vaultErr
		}
		return vault.ErrStorageUnavailable
	}
	return nil
}
