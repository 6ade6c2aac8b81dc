// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the embedded deployment record store for the
// gateway.
//
// BadgerDB backs the store: submissions made through the gateway are
// recorded here so the frontend can show deployment history even after
// the Serve controller forgets an application. The live status always
// comes from the dashboard; this store only holds what was asked for and
// when.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// deploymentPrefix namespaces deployment records inside the shared DB.
const deploymentPrefix = "deployment/"

// ErrNotFound indicates no record exists under the requested name.
var ErrNotFound = errors.New("deployment record not found")

// =============================================================================
// Configuration
// =============================================================================

// Config holds configuration for the store's BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's own log output. If nil, BadgerDB's
	// internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: synchronous writes for
// durability across gateway restarts.
func DefaultConfig() Config {
	return Config{SyncWrites: true}
}

// InMemoryConfig returns configuration for tests: no disk I/O, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// Record Type
// =============================================================================

// DeploymentRecord is what the gateway remembers about one deployment
// submission. The live application status is never stored; it is read
// from the dashboard on demand.
type DeploymentRecord struct {
	// ID is a UUID assigned on creation.
	ID string `json:"id"`

	// Name is the served-model name; one record per name.
	Name string `json:"name"`

	// ModelSource is the hub repository ID or local path submitted.
	ModelSource string `json:"model_source"`

	// Endpoint is the HOST:PORT the deployment serves on.
	Endpoint string `json:"endpoint"`

	// TensorParallel and PipelineParallel are the submitted degrees.
	TensorParallel   int `json:"tensor_parallel"`
	PipelineParallel int `json:"pipeline_parallel"`

	// GPUMemoryUtilization and MaxModelLen are the engine settings the
	// application was submitted with, defaults already resolved. Deleting
	// a sibling application resubmits the survivors from these records,
	// so every engine parameter has to round-trip through here.
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization"`
	MaxModelLen          int     `json:"max_model_len"`

	// NetworkInterface is the socket-interface pin, empty when none was
	// requested.
	NetworkInterface string `json:"network_interface,omitempty"`

	// CreatedAt and UpdatedAt are submission timestamps (UTC).
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// Store
// =============================================================================

// DeploymentStore persists deployment records in BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type DeploymentStore struct {
	db *badger.DB
}

// Open creates and opens the store with the given configuration.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *DeploymentStore: The opened store. Caller must Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*DeploymentStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &DeploymentStore{db: db}, nil
}

// Close releases the underlying database.
func (s *DeploymentStore) Close() error {
	return s.db.Close()
}

// Put creates or replaces the record for rec.Name. A new record gets a
// UUID and creation timestamp; replacing keeps both and bumps UpdatedAt.
func (s *DeploymentStore) Put(rec DeploymentRecord) (DeploymentRecord, error) {
	if rec.Name == "" {
		return DeploymentRecord{}, errors.New("record name is required")
	}

	now := time.Now().UTC()
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := getRecord(txn, rec.Name)
		switch {
		case err == nil:
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrNotFound):
			rec.ID = uuid.New().String()
			rec.CreatedAt = now
		default:
			return err
		}
		rec.UpdatedAt = now

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return txn.Set(key(rec.Name), payload)
	})
	if err != nil {
		return DeploymentRecord{}, err
	}
	return rec, nil
}

// Get returns the record under name, or ErrNotFound.
func (s *DeploymentStore) Get(name string) (DeploymentRecord, error) {
	var rec DeploymentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, name)
		return err
	})
	return rec, err
}

// List returns all records, ordered by name.
func (s *DeploymentStore) List() ([]DeploymentRecord, error) {
	var records []DeploymentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(deploymentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec DeploymentRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Delete removes the record under name. Missing records are ErrNotFound
// so callers can distinguish "never deployed" from "deleted".
func (s *DeploymentStore) Delete(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getRecord(txn, name); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
}

func key(name string) []byte {
	return []byte(deploymentPrefix + strings.TrimSpace(name))
}

func getRecord(txn *badger.Txn, name string) (DeploymentRecord, error) {
	item, err := txn.Get(key(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DeploymentRecord{}, ErrNotFound
	}
	if err != nil {
		return DeploymentRecord{}, err
	}

	var rec DeploymentRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return DeploymentRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
