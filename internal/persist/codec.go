package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ent0n29/tasklist/internal/tasks"
)

var ErrMalformed = errors.New("malformed task collection")

type record struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"createdAt"`
}

type wireRecord struct {
	ID        *string         `json:"id"`
	Text      *string         `json:"text"`
	Completed *bool           `json:"completed"`
	CreatedAt json.RawMessage `json:"createdAt"`
}

// Encode serializes the collection as a JSON array in collection order.
// createdAt is written as RFC 3339 with nanoseconds in UTC.
func Encode(list []tasks.Task) ([]byte, error) {
	out := make([]record, 0, len(list))
	for _, t := range list {
		out = append(out, record{
			ID:        t.ID,
			Text:      t.Text,
			Completed: t.Completed,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return json.Marshal(out)
}

// Decode parses a stored collection. Anything that is not an array of
// complete, well-typed records with distinct ids is ErrMalformed.
func Decode(data []byte) ([]tasks.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: not a JSON array", ErrMalformed)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]tasks.Task, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, item := range raw {
		var w wireRecord
		if err := json.Unmarshal(item, &w); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
		if w.ID == nil || *w.ID == "" || w.Text == nil || w.Completed == nil {
			return nil, fmt.Errorf("%w: record %d: missing field", ErrMalformed, i)
		}
		if _, dup := seen[*w.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate id %q", ErrMalformed, i, *w.ID)
		}
		seen[*w.ID] = struct{}{}

		createdAt, err := decodeTimestamp(w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
		out = append(out, tasks.Task{
			ID:        *w.ID,
			Text:      *w.Text,
			Completed: *w.Completed,
			CreatedAt: createdAt,
		})
	}
	return out, nil
}

// decodeTimestamp accepts an ISO-8601 string or epoch milliseconds.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("missing createdAt")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("createdAt: %w", err)
		}
		return ts.UTC(), nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("createdAt: %w", err)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, errors.New("createdAt: not a finite number")
	}
	sec, frac := math.Modf(ms / 1000)
	ts := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	// Encode writes RFC 3339, which only holds four-digit years.
	if y := ts.Year(); y < 0 || y > 9999 {
		return time.Time{}, fmt.Errorf("createdAt: year %d out of range", y)
	}
	return ts, nil
}
