package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
	"github.com/BuzzLyutic/task-prioritizer/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

// Ranker proposes priorities for tasks given free-text rules.
type Ranker interface {
	Rank(ctx context.Context, tasks []model.Task, rules []string) ([]model.TaskPriority, error)
}

type TaskService struct {
	repo   repo.Store
	ranker Ranker
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskService(repo repo.Store, ranker Ranker, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:   repo,
		ranker: ranker,
		logger: logger,
		now:    defaultClock,
	}
}

// Postgres keeps microseconds. Rounding up to the next one keeps both stores
// identical and never yields a time before the call.
func defaultClock() time.Time {
	return ceilMicrosecond(time.Now().UTC())
}

func ceilMicrosecond(t time.Time) time.Time {
	c := t.Truncate(time.Microsecond)
	if c.Before(t) {
		c = c.Add(time.Microsecond)
	}
	return c
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	return s.repo.List(ctx)
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new task and reranks everything. The returned task carries
// whatever priority it has after reconciliation.
func (s *TaskService) Create(ctx context.Context, description, idempKey string) (model.Task, error) {
	if err := validateDescription(description); err != nil {
		return model.Task{}, err
	}

	if idempKey != "" {
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			existing, err := s.repo.Get(ctx, existingID)
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, repo.ErrorNotFound) {
				return model.Task{}, err
			}
		}
	}

	created, err := s.repo.Create(ctx, description, s.now())
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Info("task created", zap.Int64("task_id", created.ID), zap.Int("priority", created.Priority))

	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, created.ID); err != nil {
			s.logger.Warn("failed to save idempotency key", zap.String("key", idempKey), zap.Error(err))
		}
	}

	s.Reconcile(ctx)

	current, err := s.repo.Get(ctx, created.ID)
	if err != nil {
		s.logger.Warn("failed to reload task after reconciliation", zap.Int64("task_id", created.ID), zap.Error(err))
		return created, nil
	}
	return current, nil
}

func (s *TaskService) UpdateDescription(ctx context.Context, id int64, description string) (model.Task, error) {
	if err := validateDescription(description); err != nil {
		return model.Task{}, err
	}
	return s.repo.UpdateDescription(ctx, id, description)
}

// UpdateTimer records the client's timer state. total is cumulative seconds
// as measured by the client.
func (s *TaskService) UpdateTimer(ctx context.Context, id int64, status string, total int64) (model.Task, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: status %q", ErrValidation, status)
	}
	if total < 0 {
		return model.Task{}, fmt.Errorf("%w: negative time", ErrValidation)
	}

	task, err := s.repo.ApplyTimerUpdate(ctx, id, model.TimerUpdate{Status: st, TotalTime: total}, s.now())
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Info("timer updated",
		zap.Int64("task_id", id),
		zap.String("status", string(st)),
		zap.Int64("total_time", total),
	)
	return task, nil
}

func (s *TaskService) GetRules(ctx context.Context) ([]string, error) {
	return s.repo.GetRules(ctx)
}

// SetRules replaces the rule set with rules and reranks. A blank value clears it.
func (s *TaskService) SetRules(ctx context.Context, rules string) error {
	set := []string{}
	if strings.TrimSpace(rules) != "" {
		set = append(set, rules)
	}
	if err := s.repo.SetRules(ctx, set); err != nil {
		return err
	}
	s.logger.Info("priority rules replaced", zap.Int("rules", len(set)))

	s.Reconcile(ctx)
	return nil
}

// Refresh reranks with the current rules.
func (s *TaskService) Refresh(ctx context.Context) {
	s.Reconcile(ctx)
}

func (s *TaskService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("all tasks deleted", zap.Int64("deleted", n))
	return n, nil
}

func (s *TaskService) Stats(ctx context.Context) (model.Stats, error) {
	return s.repo.Stats(ctx)
}

func validateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}
