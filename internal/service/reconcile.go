package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

// Reconcile asks the ranker to order every task that is not completed and
// writes the returned priorities back. Tasks missing from the answer keep
// their priority. Failures are logged and never returned: ranking is an
// enhancement and must not block the request that triggered it.
// It returns how many priorities were written.
func (s *TaskService) Reconcile(ctx context.Context) int {
	if s.ranker == nil {
		return 0
	}

	tasks, err := s.repo.ListRankable(ctx)
	if err != nil {
		s.logger.Error("reconcile: failed to list tasks", zap.Error(err))
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	rules, err := s.repo.GetRules(ctx)
	if err != nil {
		s.logger.Error("reconcile: failed to load rules", zap.Error(err))
		return 0
	}

	ranked, err := s.ranker.Rank(ctx, tasks, rules)
	if err != nil {
		s.logger.Warn("prioritization unavailable, keeping current priorities", zap.Error(err))
		return 0
	}

	priorities := s.priorityMap(tasks, ranked)
	if len(priorities) == 0 {
		return 0
	}

	if err := s.repo.ReplacePriorities(ctx, priorities); err != nil {
		s.logger.Error("reconcile: failed to store priorities", zap.Error(err))
		return 0
	}

	s.logger.Info("priorities reconciled",
		zap.Int("requested", len(tasks)),
		zap.Int("applied", len(priorities)),
	)
	return len(priorities)
}

// priorityMap keeps only ids that were sent for ranking. When an id repeats,
// the last entry wins.
func (s *TaskService) priorityMap(requested []model.Task, ranked []model.TaskPriority) map[int64]int {
	known := make(map[int64]struct{}, len(requested))
	for _, t := range requested {
		known[t.ID] = struct{}{}
	}

	out := make(map[int64]int, len(ranked))
	for _, p := range ranked {
		if _, ok := known[p.TaskID]; !ok {
			s.logger.Warn("ranking returned unknown task", zap.Int64("task_id", p.TaskID))
			continue
		}
		if !p.InRange() {
			s.logger.Warn("ranking returned out-of-range priority",
				zap.Int64("task_id", p.TaskID),
				zap.Int("priority", p.Priority),
			)
		}
		out[p.TaskID] = p.Priority
	}
	return out
}
