package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/subtrack/subtrack/server/internal/config"
)

// Backend is a durable record set. It satisfies store.Snapshotter.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, records map[string]string) error
	Close() error
}

// Open constructs the backend selected by cfg.Backend. An absent record set
// is initialised empty before Open returns.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFile(cfg.File.Path, cfg.File.Compression)
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendValkey:
		ctx, cancel := withTimeout(ctx, cfg)
		defer cancel()
		return NewValkey(ctx, cfg.Valkey.Addr, cfg.Valkey.Key, cfg.Valkey.Password())
	case config.BackendPostgres:
		url := cfg.Postgres.URL()
		if url == "" {
			return nil, fmt.Errorf("snapshot: postgres url is empty (set %s)", cfg.Postgres.URLEnv)
		}
		if err := Migrate(url); err != nil {
			return nil, err
		}
		ctx, cancel := withTimeout(ctx, cfg)
		defer cancel()
		return NewPostgres(ctx, url)
	default:
		return nil, fmt.Errorf("snapshot: unknown backend %q", cfg.Backend)
	}
}

func withTimeout(ctx context.Context, cfg config.StorageConfig) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// copyRecords returns an independent copy of records.
func copyRecords(records map[string]string) map[string]string {
	out := make(map[string]string, len(records))
	for k, v := range records {
		out[k] = v
	}
	return out
}

// exists reports whether path exists.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
