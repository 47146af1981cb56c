package task

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrNotFound         = errors.New("task not found")
	ErrNothingToUpdate  = errors.New("no fields to update")
	ErrAlreadyRunning   = errors.New("task is already running")
	ErrMissingURLOrGoal = errors.New("url and goal are required")
)

// InterruptedMessage is stored as the error of a run that never finished.
const InterruptedMessage = "Run was interrupted before it finished"

type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusModified  Status = "modified"
)

type Task struct {
	ID        string          `json:"task_id"`
	URL       string          `json:"url"`
	Goal      string          `json:"goal"`
	Status    Status          `json:"status"`
	Owner     string          `json:"-"`
	Result    json.RawMessage `json:"result"`
	LastRan   string          `json:"last_ran,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// Patch holds optional replacements for a task's inputs.
type Patch struct {
	URL  *string
	Goal *string
}

func (p Patch) empty() bool {
	return (p.URL == nil || strings.TrimSpace(*p.URL) == "") &&
		(p.Goal == nil || strings.TrimSpace(*p.Goal) == "")
}

// apply returns t with the patch applied. A task that has already produced a
// result moves to modified and loses the result, since it no longer matches
// the inputs.
func (p Patch) apply(t Task) Task {
	if p.URL != nil && strings.TrimSpace(*p.URL) != "" {
		t.URL = strings.TrimSpace(*p.URL)
	}
	if p.Goal != nil && strings.TrimSpace(*p.Goal) != "" {
		t.Goal = strings.TrimSpace(*p.Goal)
	}
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusModified:
		t.Status = StatusModified
		t.Result = nil
	}
	return t
}
