package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

// Timestamps are stored as fixed-width UTC text so that they sort chronologically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000Z07:00"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the local-development store. It keeps a single connection,
// so every statement is serialized.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (r *SQLiteStore) List(ctx context.Context) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks `+taskOrder)
}

func (r *SQLiteStore) ListRankable(ctx context.Context) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status <> 'completed' `+taskOrder)
}

func (r *SQLiteStore) list(ctx context.Context, query string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *SQLiteStore) Get(ctx context.Context, id int64) (model.Task, error) {
	return getSQLiteTask(ctx, r.db, id)
}

func (r *SQLiteStore) Create(ctx context.Context, description string, now time.Time) (model.Task, error) {
	var task model.Task
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (description, priority, status, created_at, total_time)
			SELECT ?, COUNT(*) + 1, 'pending', ?, 0 FROM tasks
		`, description, formatTime(now))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		task, err = getSQLiteTask(ctx, tx, id)
		return err
	})
	return task, err
}

func (r *SQLiteStore) UpdateDescription(ctx context.Context, id int64, description string) (model.Task, error) {
	var task model.Task
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET description = ? WHERE id = ?`, description, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrorNotFound
		}
		task, err = getSQLiteTask(ctx, tx, id)
		return err
	})
	return task, err
}

func (r *SQLiteStore) ApplyTimerUpdate(ctx context.Context, id int64, u model.TimerUpdate, now time.Time) (model.Task, error) {
	var task model.Task
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getSQLiteTask(ctx, tx, id)
		if err != nil {
			return err
		}

		t.ApplyTimer(u, now)

		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?, total_time = ?, started_at = ?, completed_at = ?
			WHERE id = ?
		`, string(t.Status), t.TotalTime, formatNullTime(t.StartedAt), formatNullTime(t.CompletedAt), t.ID); err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

func (r *SQLiteStore) ReplacePriorities(ctx context.Context, priorities map[int64]int) error {
	if len(priorities) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET priority = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range slices.Sorted(maps.Keys(priorities)) {
			if _, err := stmt.ExecContext(ctx, priorities[id], id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks`)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM idempotency_keys`)
		return err
	})
	return deleted, err
}

func (r *SQLiteStore) GetRules(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rule FROM priority_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]string, 0)
	for rows.Next() {
		var rule string
		if err := rows.Scan(&rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SQLiteStore) SetRules(ctx context.Context, rules []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM priority_rules`); err != nil {
			return err
		}
		for _, rule := range rules {
			if _, err := tx.ExecContext(ctx, `INSERT INTO priority_rules (rule) VALUES (?)`, rule); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteStore) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO idempotency_keys (key, resource_id) VALUES (?, ?)
	`, key, resourceID)
	return err
}

func (r *SQLiteStore) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT resource_id FROM idempotency_keys WHERE key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrorNotFound
	}
	return id, err
}

func (r *SQLiteStore) Stats(ctx context.Context) (model.Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_time), 0)
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
			status string
			count  int
			total  int64
		)
		if err := rows.Scan(&status, &count, &total); err != nil {
			return model.Stats{}, err
		}
		stats.ByStatus[model.Status(status)] = count
		stats.TotalTasks += count
		stats.TotalTime += total
	}
	return stats, rows.Err()
}

func (r *SQLiteStore) Migrate(ctx context.Context) error {
	ddl, err := schema("sqlite")
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *SQLiteStore) Close() error {
	return r.db.Close()
}

func (r *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqlQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLiteTask(ctx context.Context, q sqlQueryer, id int64) (model.Task, error) {
	t, err := scanSQLiteTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row sqlScanner) (model.Task, error) {
	var (
		t                  model.Task
		status, created    string
		started, completed sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.Description, &t.Priority, &status,
		&created, &started, &completed, &t.TotalTime,
	); err != nil {
		return t, err
	}

	t.Status = model.Status(status)

	var err error
	if t.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return t, fmt.Errorf("parse created_at: %w", err)
	}
	if t.StartedAt, err = parseNullTime(started); err != nil {
		return t, fmt.Errorf("parse started_at: %w", err)
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return t, fmt.Errorf("parse completed_at: %w", err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(sqliteTimeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
