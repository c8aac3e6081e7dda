package tasks

import "context"

// Persister is the durable side of the Store. Implementations absorb their
// own failures: Load degrades to an empty collection and Save never reports.
type Persister interface {
	Load(ctx context.Context) []Task
	Save(ctx context.Context, tasks []Task)
}

// NopPersister keeps nothing. Useful for tests and ephemeral lists.
type NopPersister struct{}

func (NopPersister) Load(context.Context) []Task { return nil }

func (NopPersister) Save(context.Context, []Task) {}
