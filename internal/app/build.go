package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/tasklist/internal/config"
	"github.com/ent0n29/tasklist/internal/httpapi"
	"github.com/ent0n29/tasklist/internal/observability"
	"github.com/ent0n29/tasklist/internal/persist"
	"github.com/ent0n29/tasklist/internal/session"
	"github.com/ent0n29/tasklist/internal/storage"
	"github.com/ent0n29/tasklist/internal/tasks"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Store    *tasks.Store
	Sessions *session.Manager
	Persist  *persist.Adapter
	Backend  storage.Backend
	Metrics  *observability.Metrics
	Log      *logrus.Entry

	// Cleanup should be called on shutdown to release the storage backend.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log *logrus.Entry) (*BuildResult, error) {
	if log == nil {
		log = observability.DiscardLogger()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	backend, err := storage.NewBackend(ctx, storage.Config{
		URL:           cfg.StorageURL,
		Path:          cfg.StoragePath,
		Neo4jUser:     cfg.Neo4jUser,
		Neo4jPassword: cfg.Neo4jPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("storage backend init failed: %w", err)
	}

	adapter, err := persist.New(backend, persist.Config{
		Key:          cfg.StorageKey,
		WriteTimeout: cfg.StorageWriteTimeout,
	}, log, metrics)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("persistence init failed: %w", err)
	}

	store := tasks.NewStore(adapter)
	store.Initialize(ctx)
	snap := store.Snapshot()
	metrics.SetTaskCounts(snap.Total, snap.Remaining)
	log.WithFields(logrus.Fields{
		"backend":   backend.Kind(),
		"key":       adapter.Key(),
		"tasks":     snap.Total,
		"remaining": snap.Remaining,
	}).Info("task store initialized")

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s session.Session) {
		log.WithField("session_id", s.ID).Info("idle live feed closed")
	})

	api := httpapi.New(cfg, store, sessions, adapter, metrics, log.WithField("component", "httpapi"))

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Store:    store,
		Sessions: sessions,
		Persist:  adapter,
		Backend:  backend,
		Metrics:  metrics,
		Log:      log,
		Cleanup:  backend.Close,
	}, nil
}

// StartMetricsSync keeps the task gauges in line with the store until ctx
// is done.
func (b *BuildResult) StartMetricsSync(ctx context.Context) {
	changes, unsubscribe := b.Store.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				b.Metrics.SetTaskCounts(change.Snapshot.Total, change.Snapshot.Remaining)
			}
		}
	}()
}
