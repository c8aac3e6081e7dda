package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/tasklist/internal/tasks"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTaskAdd            MessageType = "task_add"
	TypeTaskToggle         MessageType = "task_toggle"
	TypeTaskEdit           MessageType = "task_edit"
	TypeTaskDelete         MessageType = "task_delete"
	TypeTaskClearCompleted MessageType = "task_clear_completed"
	TypeTaskList           MessageType = "task_list"

	TypeTaskSnapshot MessageType = "task_snapshot"
	TypeErrorEvent   MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Client commands. RequestID is echoed on the resulting snapshot or error.

type TaskAdd struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Text      string      `json:"text"`
}

type TaskToggle struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	ID        string      `json:"id"`
}

type TaskEdit struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	ID        string      `json:"id"`
	Text      string      `json:"text"`
}

type TaskDelete struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	ID        string      `json:"id"`
}

type TaskClearCompleted struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
}

type TaskList struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Filter    string      `json:"filter,omitempty"`
}

// Server events.

type TaskSnapshot struct {
	Type      MessageType  `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	Op        tasks.Op     `json:"op,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
	Filter    tasks.Filter `json:"filter"`
	Tasks     []tasks.Task `json:"tasks"`
	Total     int          `json:"total"`
	Remaining int          `json:"remaining"`
	Completed int          `json:"completed"`
	Version   uint64       `json:"version"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

// NewSnapshot renders a store snapshot through a filter. Counts always
// describe the whole collection.
func NewSnapshot(snap tasks.Snapshot, filter tasks.Filter) TaskSnapshot {
	visible := make([]tasks.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if filter.Match(t) {
			visible = append(visible, t)
		}
	}
	return TaskSnapshot{
		Type:      TypeTaskSnapshot,
		Filter:    filter,
		Tasks:     visible,
		Total:     snap.Total,
		Remaining: snap.Remaining,
		Completed: snap.Completed,
		Version:   snap.Version,
	}
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTaskAdd:
		var msg TaskAdd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTaskToggle:
		var msg TaskToggle
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, errors.New("invalid task_toggle: id is required")
		}
		return msg, nil
	case TypeTaskEdit:
		var msg TaskEdit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, errors.New("invalid task_edit: id is required")
		}
		return msg, nil
	case TypeTaskDelete:
		var msg TaskDelete
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.ID) == "" {
			return nil, errors.New("invalid task_delete: id is required")
		}
		return msg, nil
	case TypeTaskClearCompleted:
		var msg TaskClearCompleted
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTaskList:
		var msg TaskList
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if _, err := tasks.ParseFilter(msg.Filter); err != nil {
			return nil, fmt.Errorf("invalid task_list: %w", err)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf reports the type tag of a parsed client message or server event.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case TaskAdd:
		return m.Type, true
	case TaskToggle:
		return m.Type, true
	case TaskEdit:
		return m.Type, true
	case TaskDelete:
		return m.Type, true
	case TaskClearCompleted:
		return m.Type, true
	case TaskList:
		return m.Type, true
	case TaskSnapshot:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
