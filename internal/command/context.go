package command

import (
	"context"

	"github.com/adamavenir/chatcache/internal/cache"
	"github.com/adamavenir/chatcache/internal/config"
	"github.com/adamavenir/chatcache/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Cache    *cache.Cache
	Config   *config.Config
	Logger   *zap.Logger
	JSONMode bool

	handle *cache.Handle
}

// GetContext loads configuration and opens the cache for a command.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	jsonMode, _ := cmd.Flags().GetBool("json")

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	handle := cache.NewHandle(func(ctx context.Context) (*cache.Cache, error) {
		return cache.Open(ctx, cfg, logger)
	})
	c, err := handle.Get(commandCtx(cmd))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &CommandContext{
		Cache:    c,
		Config:   cfg,
		Logger:   logger,
		JSONMode: jsonMode,
		handle:   handle,
	}, nil
}

// Close releases the cache and flushes the logger.
func (c *CommandContext) Close() error {
	err := c.handle.Close()
	_ = c.Logger.Sync()
	return err
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
