/*
 * Rolegate
 * Copyright (C) 2025  Rolegate, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package memory implements the backend interface on top of an in-process
// sorted map. It is used in tests and for local development; condition
// semantics match the DynamoDB implementation exactly.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/rolegate/rolegate/lib/backend"
)

// Config holds configuration for the in-memory backend.
type Config struct {
	// Clock is an optional clock override, used in tests.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Memory is an in-process backend implementation.
type Memory struct {
	cfg Config

	mu    sync.Mutex
	items map[backend.Key]backend.Item
}

// New returns a new in-memory backend.
func New(cfg Config) (*Memory, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Memory{
		cfg:   cfg,
		items: make(map[backend.Key]backend.Item),
	}, nil
}

// Put writes an item subject to cond and returns the new ETag.
func (m *Memory) Put(ctx context.Context, item backend.Item, cond backend.Condition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", trace.Wrap(err)
	}
	if item.Key.IsZero() {
		return "", trace.BadParameter("missing item key")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(item.Key, cond); err != nil {
		return "", trace.Wrap(err)
	}

	item.ETag = newETag()
	m.items[item.Key] = item
	return item.ETag, nil
}

// Get returns a single item or trace.NotFound.
func (m *Memory) Get(ctx context.Context, key backend.Key) (*backend.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, trace.Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, trace.NotFound("key %q is not found", key.String())
	}
	return &item, nil
}

// Delete removes an item subject to cond.
func (m *Memory) Delete(ctx context.Context, key backend.Key, cond backend.Condition) error {
	if err := ctx.Err(); err != nil {
		return trace.Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; !ok {
		if cond.IsWhatever() {
			return nil
		}
		if _, isETag := cond.IsETag(); isETag {
			return trace.CompareFailed("key %q was concurrently deleted", key.String())
		}
		return trace.NotFound("key %q is not found", key.String())
	}
	if err := m.check(key, cond); err != nil {
		return trace.Wrap(err)
	}

	delete(m.items, key)
	return nil
}

// BatchWrite applies puts and deletes unconditionally. The in-memory store
// has no chunk limit or unprocessed-item continuation, so the whole batch
// is applied atomically under the lock.
func (m *Memory) BatchWrite(ctx context.Context, ops []backend.Op) error {
	if err := ctx.Err(); err != nil {
		return trace.Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch {
		case op.Put() != nil:
			item := *op.Put()
			item.ETag = newETag()
			m.items[item.Key] = item
		case op.Delete() != nil:
			delete(m.items, *op.Delete())
		default:
			return trace.BadParameter("batch operation is neither put nor delete")
		}
	}
	return nil
}

// Query returns all items in the partition, optionally narrowed by a
// subject prefix, sorted by key ascending.
func (m *Memory) Query(ctx context.Context, params backend.QueryParams) ([]backend.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, trace.Wrap(err)
	}
	if params.Entity == "" {
		return nil, trace.BadParameter("missing query partition key")
	}
	return m.collect(params.Entity, params.SubjectPrefix), nil
}

// Scan walks the table applying the entity/subject-prefix filter.
func (m *Memory) Scan(ctx context.Context, params backend.ScanParams) ([]backend.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, trace.Wrap(err)
	}
	if params.Entity == "" {
		return nil, trace.BadParameter("missing scan filter partition key")
	}
	return m.collect(params.Entity, params.SubjectPrefix), nil
}

// Clock returns the clock used by this backend.
func (m *Memory) Clock() clockwork.Clock {
	return m.cfg.Clock
}

// Close releases the item store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[backend.Key]backend.Item)
	return nil
}

// Len returns the number of stored rows, used by tests to assert that
// cascading deletes leave nothing behind.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) collect(entity, subjectPrefix string) []backend.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []backend.Item
	for key, item := range m.items {
		if key.Entity != entity {
			continue
		}
		if subjectPrefix != "" && !strings.HasPrefix(key.Subject, subjectPrefix) {
			continue
		}
		out = append(out, item)
	}
	backend.SortItems(out)
	return out
}

// check enforces cond against the current row state, the caller holds the
// lock.
func (m *Memory) check(key backend.Key, cond backend.Condition) error {
	existing, exists := m.items[key]
	if cond.IsNotExists() && exists {
		return trace.AlreadyExists("key %q already exists", key.String())
	}
	if expected, ok := cond.IsETag(); ok {
		if !exists {
			return trace.CompareFailed("key %q was concurrently deleted", key.String())
		}
		if existing.ETag != expected {
			return trace.CompareFailed("key %q was concurrently modified", key.String())
		}
	}
	return nil
}

func newETag() string {
	return uuid.NewString()
}
