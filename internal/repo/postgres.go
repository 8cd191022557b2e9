package repo

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

const taskColumns = `id, description, priority, status, created_at, started_at, completed_at, total_time`

const taskOrder = `ORDER BY priority ASC, created_at ASC, id ASC`

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
	}
}

func (r *PostgresStore) List(ctx context.Context) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks `+taskOrder)
}

func (r *PostgresStore) ListRankable(ctx context.Context) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status <> 'completed' `+taskOrder)
}

func (r *PostgresStore) list(ctx context.Context, query string) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresStore) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	return t, r.mapError(err)
}

func (r *PostgresStore) Create(ctx context.Context, description string, now time.Time) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (description, priority, status, created_at, total_time)
		SELECT $1::text, COUNT(*) + 1, 'pending', $2::timestamptz, 0 FROM tasks
		RETURNING `+taskColumns,
		description, now,
	))
	return t, r.mapError(err)
}

func (r *PostgresStore) UpdateDescription(ctx context.Context, id int64, description string) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET description = $2
		WHERE id = $1
		RETURNING `+taskColumns,
		id, description,
	))
	return t, r.mapError(err)
}

func (r *PostgresStore) ApplyTimerUpdate(ctx context.Context, id int64, u model.TimerUpdate, now time.Time) (model.Task, error) {
	var task model.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		t.ApplyTimer(u, now)

		if _, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = $2, total_time = $3, started_at = $4, completed_at = $5
			WHERE id = $1
		`, t.ID, t.Status, t.TotalTime, t.StartedAt, t.CompletedAt); err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, r.mapError(err)
}

func (r *PostgresStore) ReplacePriorities(ctx context.Context, priorities map[int64]int) error {
	if len(priorities) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, id := range slices.Sorted(maps.Keys(priorities)) {
			batch.Queue(`UPDATE tasks SET priority = $2 WHERE id = $1`, id, priorities[id])
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM tasks`)
		if err != nil {
			return err
		}
		deleted = cmd.RowsAffected()
		_, err = tx.Exec(ctx, `DELETE FROM idempotency_keys`)
		return err
	})
	return deleted, err
}

func (r *PostgresStore) GetRules(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT rule FROM priority_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PostgresStore) SetRules(ctx context.Context, rules []string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM priority_rules`); err != nil {
			return err
		}
		for _, rule := range rules {
			if _, err := tx.Exec(ctx, `INSERT INTO priority_rules (rule) VALUES ($1)`, rule); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresStore) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID)
	return err
}

func (r *PostgresStore) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)
	return id, r.mapError(err)
}

func (r *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_time), 0)::bigint
		FROM tasks
		GROUP BY status
	`)
	if err != nil {
		return model.Stats{}, err
	}
	defer rows.Close()

	stats := model.Stats{ByStatus: make(map[model.Status]int)}
	for rows.Next() {
		var (
			status model.Status
			count  int
			total  int64
		)
		if err := rows.Scan(&status, &count, &total); err != nil {
			return model.Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.TotalTasks += count
		stats.TotalTime += total
	}
	return stats, rows.Err()
}

func (r *PostgresStore) Migrate(ctx context.Context) error {
	ddl, err := schema("postgres")
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, ddl)
	return err
}

func (r *PostgresStore) Close() error {
	r.pool.Close()
	return nil
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.Description, &t.Priority, &t.Status,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.TotalTime,
	)
	return t, err
}

func (r *PostgresStore) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
