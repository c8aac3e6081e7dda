package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingPersister struct {
	mu     sync.Mutex
	loaded []Task
	saves  [][]Task
}

func (p *recordingPersister) Load(context.Context) []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, len(p.loaded))
	copy(out, p.loaded)
	return out
}

func (p *recordingPersister) Save(_ context.Context, tasks []Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, tasks)
}

func (p *recordingPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saves)
}

func (p *recordingPersister) lastSave() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

func newTestStore(t *testing.T, seed ...Task) (*Store, *recordingPersister) {
	t.Helper()
	p := &recordingPersister{loaded: seed}
	s := NewStore(p)
	n := 0
	s.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	})
	s.SetClock(func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	s.Initialize(context.Background())
	return s, p
}

func TestStoreAddWriteReport(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	task, err := s.Add(ctx, "Write report")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	all := s.List(FilterAll)
	if len(all) != 1 {
		t.Fatalf("len(List(all)) = %d, want 1", len(all))
	}
	if all[0].Text != "Write report" || all[0].Completed {
		t.Fatalf("unexpected task: %+v", all[0])
	}
	if all[0].ID != task.ID || task.CreatedAt.IsZero() {
		t.Fatalf("returned task = %+v, stored = %+v", task, all[0])
	}
	if got := s.RemainingCount(); got != 1 {
		t.Fatalf("RemainingCount() = %d, want 1", got)
	}
	if got := p.saveCount(); got != 1 {
		t.Fatalf("saves = %d, want 1", got)
	}
}

func TestStoreAddTrimsText(t *testing.T) {
	s, _ := newTestStore(t)
	task, err := s.Add(context.Background(), "  Buy milk \n")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if task.Text != "Buy milk" {
		t.Fatalf("Text = %q, want %q", task.Text, "Buy milk")
	}
}

func TestStoreAddRejectsBlank(t *testing.T) {
	s, p := newTestStore(t)
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := s.Add(context.Background(), in); !errors.Is(err, ErrEmptyText) {
			t.Fatalf("Add(%q) error = %v, want ErrEmptyText", in, err)
		}
	}
	if got := len(s.List(FilterAll)); got != 0 {
		t.Fatalf("len(List(all)) = %d, want 0", got)
	}
	if got := s.RemainingCount(); got != 0 {
		t.Fatalf("RemainingCount() = %d, want 0", got)
	}
	if got := p.saveCount(); got != 0 {
		t.Fatalf("saves = %d, want 0", got)
	}
}

func TestStoreAppendsInInsertionOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if _, err := s.Add(ctx, text); err != nil {
			t.Fatalf("Add(%q) error = %v", text, err)
		}
	}
	all := s.List(FilterAll)
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Text != want {
			t.Fatalf("List(all)[%d].Text = %q, want %q", i, all[i].Text, want)
		}
	}
}

func TestStoreToggleTwiceRestores(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Add(ctx, "A")

	first, err := s.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !first.Completed {
		t.Fatalf("first toggle Completed = false, want true")
	}
	second, err := s.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("Toggle() second error = %v", err)
	}
	if second.Completed != a.Completed {
		t.Fatalf("Completed after two toggles = %v, want %v", second.Completed, a.Completed)
	}
	if got := p.saveCount(); got != 3 {
		t.Fatalf("saves = %d, want 3", got)
	}
}

func TestStoreToggleUnknownIsNoop(t *testing.T) {
	s, p := newTestStore(t)
	if _, err := s.Toggle(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Toggle() error = %v, want ErrTaskNotFound", err)
	}
	if got := p.saveCount(); got != 0 {
		t.Fatalf("saves = %d, want 0", got)
	}
}

func TestStoreEditRejectsBlank(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, "Buy milk")

	if _, err := s.Edit(ctx, task.ID, "  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Edit() error = %v, want ErrEmptyText", err)
	}
	got, err := s.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != "Buy milk" {
		t.Fatalf("Text = %q, want %q", got.Text, "Buy milk")
	}
	if n := p.saveCount(); n != 1 {
		t.Fatalf("saves = %d, want 1", n)
	}
}

func TestStoreEditReplacesText(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, "Buy milk")
	edited, err := s.Edit(ctx, task.ID, "  Buy oat milk ")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Text != "Buy oat milk" || edited.ID != task.ID || !edited.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("unexpected edited task: %+v", edited)
	}
	if saved := p.lastSave(); len(saved) != 1 || saved[0].Text != "Buy oat milk" {
		t.Fatalf("last save = %+v", saved)
	}
}

func TestStoreEditUnknownIsNoop(t *testing.T) {
	s, p := newTestStore(t)
	if _, err := s.Edit(context.Background(), "missing", "text"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Edit() error = %v, want ErrTaskNotFound", err)
	}
	if got := p.saveCount(); got != 0 {
		t.Fatalf("saves = %d, want 0", got)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Add(ctx, "A")
	b, _ := s.Add(ctx, "B")

	if !s.Delete(ctx, a.ID) {
		t.Fatalf("first Delete() = false, want true")
	}
	once := s.List(FilterAll)
	if s.Delete(ctx, a.ID) {
		t.Fatalf("second Delete() = true, want false")
	}
	twice := s.List(FilterAll)
	if len(once) != 1 || len(twice) != 1 || once[0] != twice[0] || twice[0].ID != b.ID {
		t.Fatalf("after deletes once = %+v, twice = %+v", once, twice)
	}
	// add, add, delete, delete
	if got := p.saveCount(); got != 4 {
		t.Fatalf("saves = %d, want 4", got)
	}
}

func TestStoreClearCompleted(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Add(ctx, "A")
	b, _ := s.Add(ctx, "B")
	if _, err := s.Toggle(ctx, b.ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	if removed := s.ClearCompleted(ctx); removed != 1 {
		t.Fatalf("ClearCompleted() = %d, want 1", removed)
	}
	all := s.List(FilterAll)
	if len(all) != 1 || all[0].ID != a.ID {
		t.Fatalf("List(all) = %+v, want only A", all)
	}
	if saved := p.lastSave(); len(saved) != 1 || saved[0].ID != a.ID {
		t.Fatalf("last save = %+v, want only A", saved)
	}
}

func TestStoreFiltersPartitionCollection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		task, _ := s.Add(ctx, fmt.Sprintf("t%d", i))
		if i%2 == 1 {
			_, _ = s.Toggle(ctx, task.ID)
		}
	}

	all := s.List(FilterAll)
	active := s.List(FilterActive)
	completed := s.List(FilterCompleted)
	if len(active)+len(completed) != len(all) {
		t.Fatalf("active(%d)+completed(%d) != all(%d)", len(active), len(completed), len(all))
	}
	seen := map[string]bool{}
	for _, task := range active {
		if task.Completed {
			t.Fatalf("active list contains completed task %+v", task)
		}
		seen[task.ID] = true
	}
	for _, task := range completed {
		if !task.Completed {
			t.Fatalf("completed list contains active task %+v", task)
		}
		if seen[task.ID] {
			t.Fatalf("task %q in both active and completed", task.ID)
		}
		seen[task.ID] = true
	}
	for _, task := range all {
		if !seen[task.ID] {
			t.Fatalf("task %q missing from partition", task.ID)
		}
	}
	if got := s.RemainingCount(); got != len(active) {
		t.Fatalf("RemainingCount() = %d, want %d", got, len(active))
	}
	// insertion order inside a filter
	if active[0].Text != "t0" || active[1].Text != "t2" || active[2].Text != "t4" {
		t.Fatalf("active order = %+v", active)
	}
}

func TestStoreIDsStayUniqueAcrossOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		task, _ := s.Add(ctx, fmt.Sprintf("item %d", i))
		switch i % 4 {
		case 1:
			s.Delete(ctx, task.ID)
		case 2:
			_, _ = s.Toggle(ctx, task.ID)
		case 3:
			s.ClearCompleted(ctx)
		}
		seen := map[string]bool{}
		for _, t2 := range s.List(FilterAll) {
			if seen[t2.ID] {
				t.Fatalf("duplicate id %q after step %d", t2.ID, i)
			}
			seen[t2.ID] = true
		}
		if got, want := s.RemainingCount(), len(s.List(FilterActive)); got != want {
			t.Fatalf("RemainingCount() = %d, want %d", got, want)
		}
	}
}

func TestStoreSkipsCollidingGeneratedIDs(t *testing.T) {
	p := &recordingPersister{loaded: []Task{{ID: "dup", Text: "existing"}}}
	s := NewStore(p)
	ids := []string{"dup", "", "fresh"}
	s.SetIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})
	s.Initialize(context.Background())

	task, err := s.Add(context.Background(), "new")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if task.ID != "fresh" {
		t.Fatalf("ID = %q, want %q", task.ID, "fresh")
	}
}

func TestStoreInitializeDropsDuplicateIDs(t *testing.T) {
	s, p := newTestStore(t,
		Task{ID: "a", Text: "first"},
		Task{ID: "a", Text: "second"},
		Task{ID: "", Text: "no id"},
		Task{ID: "b", Text: "third", Completed: true},
	)
	all := s.List(FilterAll)
	if len(all) != 2 || all[0].Text != "first" || all[1].ID != "b" {
		t.Fatalf("List(all) = %+v", all)
	}
	if got := p.saveCount(); got != 0 {
		t.Fatalf("Initialize saves = %d, want 0", got)
	}
}

func TestStoreInitializeDropsBlankText(t *testing.T) {
	s, _ := newTestStore(t,
		Task{ID: "a", Text: "   "},
		Task{ID: "b", Text: ""},
		Task{ID: "c", Text: "  padded  "},
	)
	all := s.List(FilterAll)
	if len(all) != 1 || all[0].ID != "c" || all[0].Text != "padded" {
		t.Fatalf("List(all) = %+v, want only trimmed c", all)
	}
}

func TestStoreSnapshotVersionGrowsPerMutation(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Snapshot().Version

	task, _ := s.Add(context.Background(), "A")
	_, _ = s.Toggle(context.Background(), "missing")
	s.Delete(context.Background(), task.ID)

	if got := s.Snapshot().Version; got != before+2 {
		t.Fatalf("Version = %d, want %d", got, before+2)
	}
}

func TestStoreListReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	task, _ := s.Add(context.Background(), "A")
	list := s.List(FilterAll)
	list[0].Text = "mutated"
	got, _ := s.Get(task.ID)
	if got.Text != "A" {
		t.Fatalf("Text = %q, want %q", got.Text, "A")
	}
}

func TestStoreSubscribeReceivesChanges(t *testing.T) {
	s, _ := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	task, _ := s.Add(context.Background(), "A")
	select {
	case evt := <-ch:
		if evt.Op != OpAdd || evt.TaskID != task.ID {
			t.Fatalf("unexpected change: %+v", evt)
		}
		if evt.Snapshot.Total != 1 || evt.Snapshot.Remaining != 1 {
			t.Fatalf("unexpected snapshot: %+v", evt.Snapshot)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change")
	}

	if _, err := s.Add(context.Background(), " "); err == nil {
		t.Fatalf("blank Add() error = nil")
	}
	select {
	case evt := <-ch:
		t.Fatalf("unexpected change after rejected add: %+v", evt)
	default:
	}
}

func TestParseFilter(t *testing.T) {
	cases := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"Active", FilterActive, false},
		{" completed ", FilterCompleted, false},
		{"done", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFilter(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseFilter(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseFilter(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
