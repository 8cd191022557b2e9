package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
	"github.com/BuzzLyutic/task-prioritizer/internal/repo"
)

// stubRanker answers with a fixed ranking keyed by description.
type stubRanker struct {
	byDescription map[string]int
	err           error
	calls         int
	lastRules     []string
}

func (r *stubRanker) Rank(_ context.Context, tasks []model.Task, rules []string) ([]model.TaskPriority, error) {
	r.calls++
	r.lastRules = rules
	if r.err != nil {
		return nil, r.err
	}
	out := make([]model.TaskPriority, 0, len(tasks))
	for _, t := range tasks {
		if p, ok := r.byDescription[t.Description]; ok {
			out = append(out, model.TaskPriority{TaskID: t.ID, Priority: p})
		}
	}
	return out, nil
}

func newSQLiteService(t *testing.T, ranker Ranker) *TaskService {
	t.Helper()

	store, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	return NewTaskService(store, ranker, zap.NewNop())
}

func descriptions(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Description
	}
	return out
}

func TestScenario_RefreshReordersTasks(t *testing.T) {
	ctx := context.Background()
	ranker := &stubRanker{err: errors.New("offline")}
	s := newSQLiteService(t, ranker)

	for _, d := range []string{"A", "B", "C"} {
		_, err := s.Create(ctx, d, "")
		require.NoError(t, err)
	}

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, descriptions(tasks))
	for i, task := range tasks {
		assert.Equal(t, i+1, task.Priority)
	}

	ranker.err = nil
	ranker.byDescription = map[string]int{"A": 3, "B": 1, "C": 2}
	s.Refresh(ctx)

	tasks, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, descriptions(tasks))
}

func TestScenario_CreateSurvivesRankingFailure(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteService(t, &stubRanker{err: errors.New("prioritization unavailable")})

	task, err := s.Create(ctx, "write report", "")

	require.NoError(t, err)
	assert.Equal(t, 1, task.Priority)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Zero(t, task.TotalTime)
}

func TestScenario_CompletedTasksAreNotRanked(t *testing.T) {
	ctx := context.Background()
	ranker := &stubRanker{byDescription: map[string]int{"keep": 1, "done": 1}}
	s := newSQLiteService(t, ranker)

	done, err := s.Create(ctx, "done", "")
	require.NoError(t, err)
	_, err = s.UpdateTimer(ctx, done.ID, "completed", 60)
	require.NoError(t, err)

	_, err = s.Create(ctx, "keep", "")
	require.NoError(t, err)

	applied := s.Reconcile(ctx)
	assert.Equal(t, 1, applied)
}

func TestScenario_RulesAreReplaced(t *testing.T) {
	ctx := context.Background()
	ranker := &stubRanker{byDescription: map[string]int{"x": 1}}
	s := newSQLiteService(t, ranker)

	_, err := s.Create(ctx, "x", "")
	require.NoError(t, err)

	require.NoError(t, s.SetRules(ctx, "first"))
	require.NoError(t, s.SetRules(ctx, "second"))

	rules, err := s.GetRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, rules)
	assert.Equal(t, []string{"second"}, ranker.lastRules)
}

func TestScenario_TimerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteService(t, nil)

	task, err := s.Create(ctx, "timed", "")
	require.NoError(t, err)

	active, err := s.UpdateTimer(ctx, task.ID, "active", 0)
	require.NoError(t, err)
	require.NotNil(t, active.StartedAt)

	paused, err := s.UpdateTimer(ctx, task.ID, "paused", 120)
	require.NoError(t, err)
	assert.Equal(t, int64(120), paused.TotalTime)

	again, err := s.UpdateTimer(ctx, task.ID, "active", 120)
	require.NoError(t, err)
	assert.True(t, active.StartedAt.Equal(*again.StartedAt), "started_at is set once")

	done, err := s.UpdateTimer(ctx, task.ID, "completed", 300)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, int64(300), done.TotalTime)

	_, err = s.UpdateTimer(ctx, 9999, "paused", 1)
	assert.ErrorIs(t, err, repo.ErrorNotFound)
}

func TestScenario_TimestampsNotBeforeCall(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteService(t, nil)

	for i := 0; i < 50; i++ {
		before := time.Now()

		task, err := s.Create(ctx, "stamp", "")
		require.NoError(t, err)
		assert.False(t, task.CreatedAt.Before(before),
			"created_at %s is before call at %s", task.CreatedAt, before)

		before = time.Now()
		active, err := s.UpdateTimer(ctx, task.ID, "active", 0)
		require.NoError(t, err)
		require.NotNil(t, active.StartedAt)
		assert.False(t, active.StartedAt.Before(before))

		before = time.Now()
		done, err := s.UpdateTimer(ctx, task.ID, "completed", 1)
		require.NoError(t, err)
		require.NotNil(t, done.CompletedAt)
		assert.False(t, done.CompletedAt.Before(before))
	}
}
