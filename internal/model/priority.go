package model

// TaskPriority is one entry of a ranking response.
type TaskPriority struct {
	TaskID      int64  `json:"task_id"`
	Priority    int    `json:"priority"`
	Explanation string `json:"explanation"`
}

const (
	MinRankPriority = 1
	MaxRankPriority = 10
)

func (p TaskPriority) InRange() bool {
	return p.Priority >= MinRankPriority && p.Priority <= MaxRankPriority
}
