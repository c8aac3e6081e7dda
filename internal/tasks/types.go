package tasks

import (
	"errors"
	"strings"
	"time"
)

// Task is one user-entered item. ID and CreatedAt never change after creation.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

var ErrInvalidFilter = errors.New("invalid filter")

// ParseFilter maps a query value onto a Filter. Empty input means FilterAll.
func ParseFilter(raw string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return "", ErrInvalidFilter
	}
}

func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

type Op string

const (
	OpInitialize     Op = "initialize"
	OpAdd            Op = "add"
	OpToggle         Op = "toggle"
	OpEdit           Op = "edit"
	OpDelete         Op = "delete"
	OpClearCompleted Op = "clear_completed"
)

// Snapshot is a point-in-time copy of the whole collection with its counts.
// Version grows by one with every mutation.
type Snapshot struct {
	Tasks     []Task `json:"tasks"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
	Completed int    `json:"completed"`
	Version   uint64 `json:"version"`
}

// Change is published to subscribers after every persisted mutation.
type Change struct {
	Op       Op        `json:"op"`
	TaskID   string    `json:"task_id,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
	At       time.Time `json:"at"`
}

func newSnapshot(tasks []Task, version uint64) Snapshot {
	out := Snapshot{
		Tasks:   make([]Task, len(tasks)),
		Total:   len(tasks),
		Version: version,
	}
	copy(out.Tasks, tasks)
	for _, t := range tasks {
		if t.Completed {
			out.Completed++
		} else {
			out.Remaining++
		}
	}
	return out
}
