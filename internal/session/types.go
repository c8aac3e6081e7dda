package session

import (
	"time"

	"github.com/ent0n29/tasklist/internal/tasks"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is one live websocket feed.
type Session struct {
	ID             string       `json:"session_id"`
	RemoteAddr     string       `json:"remote_addr"`
	Status         Status       `json:"status"`
	Filter         tasks.Filter `json:"filter"`
	Commands       int          `json:"commands"`
	ConnectedAt    time.Time    `json:"connected_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}
