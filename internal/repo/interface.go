package repo

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store owns tasks, priority rules and idempotency keys.
// Listing methods order by priority ascending (1 first), then by creation time.
type Store interface {
	List(ctx context.Context) ([]model.Task, error)
	// ListRankable returns the tasks that are not completed.
	ListRankable(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	// Create inserts a pending task whose priority is the current task count plus one.
	Create(ctx context.Context, description string, now time.Time) (model.Task, error)
	UpdateDescription(ctx context.Context, id int64, description string) (model.Task, error)
	ApplyTimerUpdate(ctx context.Context, id int64, u model.TimerUpdate, now time.Time) (model.Task, error)
	// ReplacePriorities sets priority for every listed id in one transaction.
	// Unknown ids are skipped.
	ReplacePriorities(ctx context.Context, priorities map[int64]int) error
	DeleteAll(ctx context.Context) (int64, error)

	GetRules(ctx context.Context) ([]string, error)
	// SetRules replaces the whole rule set.
	SetRules(ctx context.Context, rules []string) error

	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)

	Stats(ctx context.Context) (model.Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

func schema(name string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
