package revocation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-embedded-app/internal/config"
)

// New opens the store selected by cfg.GetStoreDriver().
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.GetStoreDriver() {
	case config.StoreDriverRedis:
		s := NewRedisStore(NewRedisClient(RedisConfig{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		}), cfg.GetRedisPrefix(), cfg.GetRevocationTTL())
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("[revocation New] redis %s: %w", cfg.GetRedisAddr(), err)
		}
		return s, nil
	case config.StoreDriverSQLite:
		if dir := filepath.Dir(cfg.GetSQLitePath()); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("[revocation New] create data folder: %w", err)
			}
		}
		s, err := NewSQLiteStore(cfg.GetSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("[revocation New] sqlite: %w", err)
		}
		return s, nil
	case config.StoreDriverPostgres:
		s, err := NewPostgresStore(cfg.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("[revocation New] postgres: %w", err)
		}
		return s, nil
	case config.StoreDriverMemory, "":
		return NewMemoryStore(cfg.GetRevocationTTL()), nil
	default:
		return nil, fmt.Errorf("[revocation New] unknown store driver %q", cfg.GetStoreDriver())
	}
}
