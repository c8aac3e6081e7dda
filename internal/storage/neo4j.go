package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jBackend stores each key as an (:Entry {key, value}) node.
type Neo4jBackend struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jBackend(ctx context.Context, uri, user, password string) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(strings.TrimSpace(uri), neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "CREATE CONSTRAINT entry_key IF NOT EXISTS FOR (e:Entry) REQUIRE e.key IS UNIQUE", nil)
		return nil, err
	})
	if err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("init neo4j constraint: %w", err)
	}

	return &Neo4jBackend{driver: driver}, nil
}

func (b *Neo4jBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (e:Entry {key: $key}) RETURN e.value AS value",
			map[string]any{"key": key},
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}
		value, ok := res.Record().Values[0].(string)
		if !ok {
			return nil, fmt.Errorf("entry %q: value is not a string", key)
		}
		return value, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return []byte(result.(string)), nil
}

func (b *Neo4jBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MERGE (e:Entry {key: $key}) SET e.value = $value, e.updated_at = datetime()",
			map[string]any{
				"key":   key,
				"value": string(value),
			},
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

func (b *Neo4jBackend) Kind() string { return "neo4j" }

func (b *Neo4jBackend) Close() error {
	return b.driver.Close(context.Background())
}
