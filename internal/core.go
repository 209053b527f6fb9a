package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/layoutcache"
	"github.com/starford/deckgraph/internal/metrics"
	"github.com/starford/deckgraph/internal/storage"
)

// NewLogger builds a JSON logger writing to w and, when LogFile is set, to a
// rotating file as well. The returned func closes the file.
func NewLogger(cfg ApplicationConfig, w io.Writer) (*slog.Logger, func() error) {
	closer := func() error { return nil }
	if cfg.LogFile != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: 3,
			Compress:   true,
		}
		w = io.MultiWriter(w, rot)
		closer = rot.Close
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})), closer
}

// Core is the storage, index and service stack shared by every command.
type Core struct {
	Store   *storage.FS
	DB      *index.DB
	Service *deckservice.Service
	Metrics *metrics.Metrics

	closers []func() error
}

// Open wires storage, the SQLite index, the layout cache and the deck
// service from cfg, then indexes the vault once.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*Core, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path, storage.WithIgnore(cfg.Vault.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	core := &Core{Store: store, DB: db, Metrics: metrics.New()}
	core.closers = append(core.closers, db.Close)

	cache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	if r, ok := cache.(*layoutcache.Redis); ok {
		core.closers = append(core.closers, r.Close)
	}

	opts := []deckservice.Option{
		deckservice.WithLogger(logger),
		deckservice.WithMetrics(core.Metrics),
		deckservice.WithGraphSettings(cfg.Graph.Settings()),
	}
	if cache != nil {
		opts = append(opts, deckservice.WithCache(cache))
	}
	core.Service = deckservice.NewService(store, db, opts...)

	if err := core.Service.Reindex(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return core, nil
}

// Close releases the index and cache connections.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func openCache(ctx context.Context, cfg CacheConfig, logger *slog.Logger) (layoutcache.Cache, error) {
	switch cfg.Backend {
	case CacheNone:
		return nil, nil
	case CacheRedis:
		opts := []layoutcache.RedisOption{layoutcache.WithTTL(cfg.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, layoutcache.WithPrefix(cfg.Redis.Prefix))
		}
		r := layoutcache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("init layout cache: %w", err)
		}
		logger.Info("layout cache: redis", slog.String("address", cfg.Redis.Address))
		return r, nil
	default:
		return layoutcache.NewMemory(cfg.TTL), nil
	}
}
