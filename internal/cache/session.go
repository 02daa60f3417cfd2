package cache

import (
	"context"
	"fmt"

	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/types"
	"go.uber.org/zap"
)

// Login stores the session credential.
func (c *Cache) Login(ctx context.Context, token, userID string) (*types.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.secure(); err != nil {
		return nil, err
	}
	return c.creds.Save(token, userID)
}

// Credential returns the stored credential, or nil when logged out.
func (c *Cache) Credential(ctx context.Context) (*types.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.secure(); err != nil {
		return nil, err
	}
	return c.creds.Get()
}

// HasValidToken reports whether a session token is stored.
func (c *Cache) HasValidToken(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := c.secure(); err != nil {
		return false, err
	}
	return c.creds.HasValidToken()
}

// Clear empties the cache tables and forgets every read position. The credential is kept.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.ClearCache(c.db); err != nil {
		return c.writeFailed("clear cache", err)
	}
	c.publish("", "")
	if err := c.secure(); err != nil {
		return err
	}
	if err := c.positions.ClearAll(); err != nil {
		return fmt.Errorf("clear read positions: %w", err)
	}
	return nil
}

// Logout clears everything cached for the user, including the credential.
func (c *Cache) Logout(ctx context.Context) error {
	if err := c.Clear(ctx); err != nil {
		return err
	}
	if err := c.creds.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	c.logger.Info("logged out, local cache cleared", zap.String("data_dir", c.layout.Root))
	return nil
}
