package storage

import (
	"context"
	"fmt"
	"strings"
)

type Config struct {
	// URL selects the backend by scheme. Empty means a file backend at Path.
	URL           string
	Path          string
	Neo4jUser     string
	Neo4jPassword string
}

// NewBackend creates the backend named by cfg.URL.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	raw := strings.TrimSpace(cfg.URL)
	scheme := ""
	if i := strings.Index(raw, "://"); i > 0 {
		scheme = strings.ToLower(raw[:i])
	} else if raw != "" {
		scheme = strings.ToLower(raw)
	}

	switch scheme {
	case "":
		if strings.TrimSpace(cfg.Path) == "" {
			return NewInMemoryBackend(), nil
		}
		return NewFileBackend(cfg.Path)
	case "memory", "mem":
		return NewInMemoryBackend(), nil
	case "file":
		path := ""
		if i := strings.Index(raw, "://"); i > 0 {
			path = raw[i+3:]
		}
		if path == "" {
			path = cfg.Path
		}
		return NewFileBackend(path)
	case "postgres", "postgresql":
		return NewPostgresBackend(ctx, raw)
	case "mysql":
		return NewMySQLBackend(ctx, raw)
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
		return NewNeo4jBackend(ctx, raw, cfg.Neo4jUser, cfg.Neo4jPassword)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", scheme)
	}
}
