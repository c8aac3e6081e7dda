package persist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/tasklist/internal/observability"
	"github.com/ent0n29/tasklist/internal/reliability"
	"github.com/ent0n29/tasklist/internal/storage"
	"github.com/ent0n29/tasklist/internal/tasks"
)

const (
	DefaultKey          = "todos"
	DefaultWriteTimeout = 2 * time.Second
)

// Result labels reported to metrics besides the storage error classes.
const (
	ResultOK      = "ok"
	LoadEmpty     = "empty"
	LoadMalformed = "malformed"
)

type Config struct {
	Key          string
	WriteTimeout time.Duration
}

// Adapter bridges a tasks.Store and a storage.Backend. It never reports
// failures to its caller: reads degrade to an empty collection and failed
// writes are logged and counted.
type Adapter struct {
	backend      storage.Backend
	key          string
	writeTimeout time.Duration
	log          logrus.FieldLogger
	metrics      *observability.Metrics

	mu          sync.Mutex
	lastWriteAt time.Time
	lastErr     error
}

var _ tasks.Persister = (*Adapter)(nil)

func New(backend storage.Backend, cfg Config, log logrus.FieldLogger, metrics *observability.Metrics) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("persist: backend is required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = DefaultKey
	}
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if log == nil {
		log = observability.DiscardLogger()
	}
	return &Adapter{
		backend:      backend,
		key:          key,
		writeTimeout: cfg.WriteTimeout,
		log:          log.WithFields(logrus.Fields{"component": "persist", "key": key, "backend": backend.Kind()}),
		metrics:      metrics,
	}, nil
}

func (a *Adapter) Key() string { return a.key }

func (a *Adapter) Load(ctx context.Context) []tasks.Task {
	data, err := a.backend.Get(ctx, a.key)
	if err != nil {
		class := reliability.ClassifyStorageError(err)
		if class == reliability.ClassNotFound {
			a.metrics.ObserveLoad(LoadEmpty)
			a.log.Debug("no stored collection, starting empty")
			return []tasks.Task{}
		}
		a.metrics.ObserveLoad(class)
		a.log.WithError(err).WithField("class", class).Warn("load failed, starting empty")
		return []tasks.Task{}
	}

	list, err := Decode(data)
	if err != nil {
		a.metrics.ObserveLoad(LoadMalformed)
		a.log.WithError(err).WithField("bytes", len(data)).Warn("stored collection is malformed, starting empty")
		return []tasks.Task{}
	}
	a.metrics.ObserveLoad(ResultOK)
	a.log.WithField("tasks", len(list)).Debug("collection loaded")
	return list
}

// Save overwrites the stored collection. The write outlives cancellation of
// ctx and is bounded by the configured write timeout.
func (a *Adapter) Save(ctx context.Context, list []tasks.Task) {
	data, err := Encode(list)
	if err != nil {
		a.recordWrite(err)
		a.metrics.ObserveWrite(reliability.ClassOther, 0)
		a.log.WithError(err).Error("encode collection failed")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.writeTimeout)
	defer cancel()

	started := time.Now()
	err = a.backend.Put(writeCtx, a.key, data)
	elapsed := time.Since(started)
	a.recordWrite(err)
	if err != nil {
		class := reliability.ClassifyStorageError(err)
		a.metrics.ObserveWrite(class, elapsed)
		a.log.WithError(err).WithFields(logrus.Fields{
			"class": class,
			"tasks": len(list),
		}).Error("save failed, in-memory collection stays authoritative")
		return
	}
	a.metrics.ObserveWrite(ResultOK, elapsed)
	a.log.WithFields(logrus.Fields{
		"tasks":       len(list),
		"bytes":       len(data),
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("collection saved")
}

// LastWrite returns when the last write attempt finished and its error.
func (a *Adapter) LastWrite() (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastWriteAt, a.lastErr
}

func (a *Adapter) recordWrite(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastWriteAt = time.Now().UTC()
	a.lastErr = err
}
