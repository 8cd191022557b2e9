package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

// runStoreTests exercises the Store contract against any implementation.
// newStore must return an empty, migrated store.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	createN := func(t *testing.T, s Store, descriptions ...string) []model.Task {
		t.Helper()
		out := make([]model.Task, 0, len(descriptions))
		for i, d := range descriptions {
			task, err := s.Create(ctx, d, base.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			out = append(out, task)
		}
		return out
	}

	ids := func(tasks []model.Task) []int64 {
		out := make([]int64, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	t.Run("create assigns defaults", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B", "C")

		for i, task := range created {
			assert.NotZero(t, task.ID)
			assert.Equal(t, model.StatusPending, task.Status)
			assert.Equal(t, int64(0), task.TotalTime)
			assert.Equal(t, i+1, task.Priority)
			assert.Nil(t, task.StartedAt)
			assert.Nil(t, task.CompletedAt)
			assert.WithinDuration(t, base.Add(time.Duration(i)*time.Second), task.CreatedAt, time.Microsecond)
		}
		assert.Equal(t, "B", created[1].Description)
	})

	t.Run("list orders by priority then creation", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B", "C")

		require.NoError(t, s.ReplacePriorities(ctx, map[int64]int{
			created[0].ID: 2,
			created[1].ID: 2,
			created[2].ID: 1,
		}))

		tasks, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{created[2].ID, created[0].ID, created[1].ID}, ids(tasks))
	})

	t.Run("list on empty store", func(t *testing.T) {
		s := newStore(t)
		tasks, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("rankable excludes completed", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B", "C")

		_, err := s.ApplyTimerUpdate(ctx, created[1].ID, model.TimerUpdate{Status: model.StatusCompleted, TotalTime: 10}, base)
		require.NoError(t, err)
		_, err = s.ApplyTimerUpdate(ctx, created[2].ID, model.TimerUpdate{Status: model.StatusPaused, TotalTime: 5}, base)
		require.NoError(t, err)

		tasks, err := s.ListRankable(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{created[0].ID, created[2].ID}, ids(tasks))
	})

	t.Run("get", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A")

		got, err := s.Get(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Description)

		_, err = s.Get(ctx, 99999)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("update description", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A")

		updated, err := s.UpdateDescription(ctx, created[0].ID, "A, reworded")
		require.NoError(t, err)
		assert.Equal(t, "A, reworded", updated.Description)
		assert.Equal(t, created[0].Priority, updated.Priority)

		_, err = s.UpdateDescription(ctx, 99999, "nope")
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("timer updates", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A")
		id := created[0].ID
		t1, t2, t3 := base.Add(time.Minute), base.Add(2*time.Minute), base.Add(3*time.Minute)

		task, err := s.ApplyTimerUpdate(ctx, id, model.TimerUpdate{Status: model.StatusActive, TotalTime: 0}, t1)
		require.NoError(t, err)
		require.NotNil(t, task.StartedAt)
		assert.WithinDuration(t, t1, *task.StartedAt, time.Microsecond)

		task, err = s.ApplyTimerUpdate(ctx, id, model.TimerUpdate{Status: model.StatusActive, TotalTime: 60}, t2)
		require.NoError(t, err)
		assert.WithinDuration(t, t1, *task.StartedAt, time.Microsecond)
		assert.Equal(t, int64(60), task.TotalTime)

		task, err = s.ApplyTimerUpdate(ctx, id, model.TimerUpdate{Status: model.StatusCompleted, TotalTime: 90}, t2)
		require.NoError(t, err)
		require.NotNil(t, task.CompletedAt)
		assert.WithinDuration(t, t2, *task.CompletedAt, time.Microsecond)

		task, err = s.ApplyTimerUpdate(ctx, id, model.TimerUpdate{Status: model.StatusCompleted, TotalTime: 95}, t3)
		require.NoError(t, err)
		assert.WithinDuration(t, t3, *task.CompletedAt, time.Microsecond)

		stored, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, stored.Status)
		assert.Equal(t, int64(95), stored.TotalTime)
		assert.WithinDuration(t, t1, *stored.StartedAt, time.Microsecond)
		assert.WithinDuration(t, t3, *stored.CompletedAt, time.Microsecond)

		_, err = s.ApplyTimerUpdate(ctx, 99999, model.TimerUpdate{Status: model.StatusActive}, t1)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("replace priorities skips unknown ids", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B")

		require.NoError(t, s.ReplacePriorities(ctx, map[int64]int{
			created[0].ID: 7,
			99999:         1,
		}))

		a, err := s.Get(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 7, a.Priority)

		b, err := s.Get(ctx, created[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 2, b.Priority)
		assert.Equal(t, "B", b.Description)

		require.NoError(t, s.ReplacePriorities(ctx, nil))
	})

	t.Run("rules are replaced wholesale", func(t *testing.T) {
		s := newStore(t)

		rules, err := s.GetRules(ctx)
		require.NoError(t, err)
		assert.Empty(t, rules)

		require.NoError(t, s.SetRules(ctx, []string{"deadlines first", "then small tasks"}))
		require.NoError(t, s.SetRules(ctx, []string{"urgent tasks first"}))

		rules, err = s.GetRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"urgent tasks first"}, rules)
	})

	t.Run("idempotency keys", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetIdempotencyKey(ctx, "k1")
		assert.ErrorIs(t, err, ErrorNotFound)

		require.NoError(t, s.SaveIdempotencyKey(ctx, "k1", 42))
		require.NoError(t, s.SaveIdempotencyKey(ctx, "k1", 43))

		id, err := s.GetIdempotencyKey(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("stats", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B", "C")
		_, err := s.ApplyTimerUpdate(ctx, created[0].ID, model.TimerUpdate{Status: model.StatusCompleted, TotalTime: 100}, base)
		require.NoError(t, err)
		_, err = s.ApplyTimerUpdate(ctx, created[1].ID, model.TimerUpdate{Status: model.StatusActive, TotalTime: 20}, base)
		require.NoError(t, err)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalTasks)
		assert.Equal(t, int64(120), stats.TotalTime)
		assert.Equal(t, map[model.Status]int{
			model.StatusCompleted: 1,
			model.StatusActive:    1,
			model.StatusPending:   1,
		}, stats.ByStatus)
	})

	t.Run("delete all", func(t *testing.T) {
		s := newStore(t)
		created := createN(t, s, "A", "B")
		require.NoError(t, s.SaveIdempotencyKey(ctx, "k1", created[0].ID))

		n, err := s.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		tasks, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, tasks)

		_, err = s.GetIdempotencyKey(ctx, "k1")
		assert.ErrorIs(t, err, ErrorNotFound)

		next := createN(t, s, "C")
		assert.Equal(t, 1, next[0].Priority)
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Migrate(ctx))
	})
}
