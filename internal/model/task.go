package model

import (
	"errors"
	"time"
)

var ErrInvalidStatus = errors.New("invalid status")

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusActive, StatusPaused, StatusCompleted:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Task is ordered by Priority ascending: 1 is the most important.
type Task struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TotalTime   int64      `json:"total_time"`
}

// TimerUpdate carries the client-reported state; TotalTime is cumulative seconds.
type TimerUpdate struct {
	Status    Status `json:"status"`
	TotalTime int64  `json:"time"`
}

// ApplyTimer writes the update onto t. Any status may follow any other.
// StartedAt is only set on the first activation; CompletedAt is refreshed
// on every completion.
func (t *Task) ApplyTimer(u TimerUpdate, now time.Time) {
	t.Status = u.Status
	t.TotalTime = u.TotalTime

	switch u.Status {
	case StatusActive:
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
	case StatusCompleted:
		completed := now
		t.CompletedAt = &completed
	}
}

// Rankable reports whether the task takes part in prioritization.
func (t Task) Rankable() bool {
	return t.Status != StatusCompleted
}

type Stats struct {
	TotalTasks int            `json:"total_tasks"`
	ByStatus   map[Status]int `json:"by_status"`
	TotalTime  int64          `json:"total_time"`
}
