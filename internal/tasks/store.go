package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTaskNotFound and ErrEmptyText report a rejected no-op: the
	// collection is unchanged and nothing was written.
	ErrTaskNotFound = errors.New("task not found")
	ErrEmptyText    = errors.New("task text is empty")
)

// Store owns the task collection. Every mutation that changes (or may
// change) the collection is followed by exactly one Save of the full
// collection; rejected input performs no write.
type Store struct {
	mu sync.RWMutex

	persister Persister
	now       func() time.Time
	newID     func() string

	tasks   []Task
	version uint64

	subscribers map[int]chan Change
	nextSubID   int
}

func NewStore(persister Persister) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	return &Store{
		persister:   persister,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		subscribers: make(map[int]chan Change),
	}
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}

func (s *Store) SetIDGenerator(newID func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newID != nil {
		s.newID = newID
	}
}

// Initialize replaces the in-memory collection with whatever the persister
// returns. Records without an id or text and repeated ids are dropped.
func (s *Store) Initialize(ctx context.Context) {
	loaded := s.persister.Load(ctx)

	tasks := make([]Task, 0, len(loaded))
	seen := make(map[string]struct{}, len(loaded))
	for _, t := range loaded {
		t.Text = strings.TrimSpace(t.Text)
		if t.ID == "" || t.Text == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
	s.publishLocked(OpInitialize, "")
}

func (s *Store) Add(ctx context.Context, rawText string) (Task, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Task{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := Task{
		ID:        s.uniqueIDLocked(),
		Text:      text,
		Completed: false,
		CreatedAt: s.now(),
	}
	s.tasks = append(s.tasks, task)
	s.persistLocked(ctx)
	s.publishLocked(OpAdd, task.ID)
	return task, nil
}

func (s *Store) Toggle(ctx context.Context, id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, ErrTaskNotFound
	}
	next := s.tasks[i]
	next.Completed = !next.Completed
	s.tasks[i] = next
	s.persistLocked(ctx)
	s.publishLocked(OpToggle, id)
	return next, nil
}

// Edit never blanks a task: whitespace-only text leaves the old text in place.
func (s *Store) Edit(ctx context.Context, id, rawText string) (Task, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Task{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, ErrTaskNotFound
	}
	next := s.tasks[i]
	next.Text = text
	s.tasks[i] = next
	s.persistLocked(ctx)
	s.publishLocked(OpEdit, id)
	return next, nil
}

// Delete removes the task if present and persists either way. It reports
// whether a task was removed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		removed = true
	}
	s.persistLocked(ctx)
	s.publishLocked(OpDelete, id)
	return removed
}

// ClearCompleted drops every completed task, persists, and returns how many
// were removed.
func (s *Store) ClearCompleted(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(s.tasks) - len(kept)
	s.tasks = kept
	s.persistLocked(ctx)
	s.publishLocked(OpClearCompleted, "")
	return removed
}

func (s *Store) List(filter Filter) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, ErrTaskNotFound
	}
	return s.tasks[i], nil
}

func (s *Store) RemainingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newSnapshot(s.tasks, s.version)
}

// Subscribe returns a channel receiving a Change after each mutation. Slow
// subscribers miss changes rather than block the store.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 64)

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if id != "" && s.indexLocked(id) < 0 {
			return id
		}
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	s.persister.Save(ctx, out)
}

// publishLocked bumps the collection version and fans the change out.
func (s *Store) publishLocked(op Op, taskID string) {
	s.version++
	if len(s.subscribers) == 0 {
		return
	}
	evt := Change{
		Op:       op,
		TaskID:   taskID,
		Snapshot: newSnapshot(s.tasks, s.version),
		At:       s.now(),
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
