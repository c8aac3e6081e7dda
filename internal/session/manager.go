package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/tasklist/internal/tasks"
)

var ErrNotFound = errors.New("session not found")

type entry struct {
	Session
	closeFn func()
}

// Manager tracks live feeds and closes the ones that stay idle past the
// inactivity timeout.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Open registers a feed. closeFn is invoked once if the janitor expires it.
func (m *Manager) Open(remoteAddr string, filter tasks.Filter, closeFn func()) Session {
	now := m.now()
	e := &entry{
		Session: Session{
			ID:             uuid.NewString(),
			RemoteAddr:     remoteAddr,
			Status:         StatusActive,
			Filter:         filter,
			ConnectedAt:    now,
			LastActivityAt: now,
		},
		closeFn: closeFn,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[e.ID] = e
	return e.Session
}

func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.Session, nil
}

// Filter returns the view a feed asked for, FilterAll when unknown.
func (m *Manager) Filter(id string) tasks.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.Filter
	}
	return tasks.FilterAll
}

// Touch records a client command.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.Commands++
	e.LastActivityAt = m.now()
	return nil
}

// MarkActive refreshes a feed's activity without counting a command, e.g.
// when the client answers a ping.
func (m *Manager) MarkActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.LastActivityAt = m.now()
	return nil
}

func (m *Manager) SetFilter(id string, filter tasks.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.Filter = filter
	e.LastActivityAt = m.now()
	return nil
}

// End forgets the feed and returns its final state.
func (m *Manager) End(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	delete(m.sessions, id)
	e.Status = StatusEnded
	e.LastActivityAt = m.now()
	return e.Session, nil
}

// List returns active feeds ordered by connection time.
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.Session)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*entry

	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		e.Status = StatusEnded
		e.LastActivityAt = now
		expired = append(expired, e)
		delete(m.sessions, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, e := range expired {
		if e.closeFn != nil {
			e.closeFn()
		}
		if hook != nil {
			hook(e.Session)
		}
	}
}
