package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to the database named by databaseURL. sqlite:/// URLs open a
// local file (sqlite:///./tasks.db is relative, sqlite:////var/tasks.db is
// absolute); postgres:// and postgresql:// URLs open a pgx pool.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return OpenSQLite(SQLitePath(databaseURL))

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return NewPostgresStore(pool), nil
	}

	scheme, _, _ := strings.Cut(databaseURL, "://")
	return nil, fmt.Errorf("unsupported database scheme %q", scheme)
}

func SQLitePath(databaseURL string) string {
	if p, ok := strings.CutPrefix(databaseURL, "sqlite:///"); ok {
		return p
	}
	return strings.TrimPrefix(databaseURL, "sqlite://")
}
