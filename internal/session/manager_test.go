package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/tasklist/internal/tasks"
)

func TestManagerOpenGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Open("127.0.0.1:5000", tasks.FilterActive, nil)
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Filter != tasks.FilterActive || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after End error = %v, want ErrNotFound", err)
	}
	if m.Filter(s.ID) != tasks.FilterAll {
		t.Fatalf("Filter() of unknown session = %q, want all", m.Filter(s.ID))
	}
}

func TestManagerTouchAndSetFilter(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Open("", tasks.FilterAll, nil)
	if err := m.Touch(s.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if err := m.SetFilter(s.ID, tasks.FilterCompleted); err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.Commands != 1 {
		t.Fatalf("Commands = %d, want 1", got.Commands)
	}
	if m.Filter(s.ID) != tasks.FilterCompleted {
		t.Fatalf("Filter() = %q, want completed", m.Filter(s.ID))
	}
	if err := m.Touch("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerMarkActiveKeepsFeedAlive(t *testing.T) {
	m := NewManager(60 * time.Millisecond)
	s := m.Open("", tasks.FilterAll, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	for i := 0; i < 6; i++ {
		time.Sleep(20 * time.Millisecond)
		if err := m.MarkActive(s.ID); err != nil {
			t.Fatalf("MarkActive() error = %v", err)
		}
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v, want feed still open", err)
	}
	if got.Commands != 0 {
		t.Fatalf("Commands = %d, want 0", got.Commands)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	var closed, hooked atomic.Int32
	m.SetExpireHook(func(Session) { hooked.Add(1) })
	s := m.Open("", tasks.FilterAll, func() { closed.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound after expiry", err)
	}
	if closed.Load() != 1 || hooked.Load() != 1 {
		t.Fatalf("closeFn calls = %d, hook calls = %d, want 1 and 1", closed.Load(), hooked.Load())
	}
}
