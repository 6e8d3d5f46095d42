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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/rolegate/rolegate"
	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/changetrack"
	"github.com/rolegate/rolegate/lib/encryptor"
)

// eventMarker prefixes the partition of every event row, keeping the audit
// partitions disjoint from the entity partitions they shadow. Events
// survive deletion of the entity partition they describe.
const eventMarker = "EVENT#"

// PersistenceError reports that the entity write committed but the
// matching event write failed. The entity state is intact; callers decide
// whether to retry the audit trail.
type PersistenceError struct {
	// Err is the underlying event write failure.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("entity write committed but event write failed: %v", e.Err)
}

// Unwrap returns the underlying failure.
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err is an event persistence failure.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// RecorderConfig holds configuration for a Recorder.
type RecorderConfig struct {
	// Backend is the table the events are written to.
	Backend backend.Backend
	// Policy governs emission, default AllChanges.
	Policy Policy
	// Encryptor seals encrypted tracked values. Required only when entity
	// schemas declare encrypted fields.
	Encryptor encryptor.Encryptor
}

// CheckAndSetDefaults validates the config.
func (c *RecorderConfig) CheckAndSetDefaults() error {
	if c.Backend == nil {
		return trace.BadParameter("missing recorder backend")
	}
	return nil
}

// Recorder builds policy-governed item events and persists them in the
// same table as the entities, under shadow EVENT# partitions.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger
}

// NewRecorder creates a Recorder for the given backend and policy.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Recorder{
		cfg:    cfg,
		logger: slog.With(rolegate.ComponentKey, rolegate.ComponentEvents),
	}, nil
}

// Policy returns the recorder's emission policy.
func (r *Recorder) Policy() Policy {
	return r.cfg.Policy
}

// Encrypts reports whether the recorder can seal encrypted tracked
// values. Services whose schemas declare encrypted fields require this
// under the AllChanges policy.
func (r *Recorder) Encrypts() bool {
	return r.cfg.Encryptor != nil
}

// Record emits one event for a mutation of the row at key. Under the
// AllChanges policy creations are diffed against an empty baseline,
// updates against the supplied baseline, and deletions carry no changes.
//
// Record runs after the entity write committed, so every failure here is
// reported as a PersistenceError and must not roll back the entity write
// it describes.
func (r *Recorder) Record(ctx context.Context, action SaveAction, key backend.Key, schema changetrack.Schema, baseline, current any) error {
	if r.cfg.Policy == Disabled {
		return nil
	}

	var changes []changetrack.Change
	if r.cfg.Policy == AllChanges && action != Deleted {
		if action == Created {
			baseline = nil
		}
		var err error
		changes, err = changetrack.Diff(schema, baseline, current, r.cfg.Encryptor)
		if err != nil {
			return &PersistenceError{Err: err}
		}
	}

	now := r.cfg.Backend.Clock().Now().UTC()
	event := ItemEvent{
		ID:           uuid.NewString(),
		PartitionKey: key.Entity,
		SaveAction:   action,
		Timestamp:    now,
		RelatedID:    key.Subject,
		TraceContext: traceContext(ctx),
		Changes:      changes,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return trace.Wrap(err)
	}
	if _, err := r.cfg.Backend.Put(ctx, backend.Item{
		Key:   eventKey(key.Entity, now.UnixNano(), event.ID),
		Value: value,
	}, backend.Whatever()); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// Events returns all recorded events for rows in the given entity
// partition, oldest first.
func (r *Recorder) Events(ctx context.Context, entity string) ([]ItemEvent, error) {
	items, err := r.cfg.Backend.Query(ctx, backend.QueryParams{
		Entity: eventMarker + entity,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	out := make([]ItemEvent, 0, len(items))
	for _, item := range items {
		var event ItemEvent
		if err := json.Unmarshal(item.Value, &event); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed event row", "error", err, "key", item.Key.String())
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// eventKey places events under a shadow partition keyed by the affected
// row's partition, with a zero-padded nanosecond timestamp in the sort key
// so range reads come back in emission order.
func eventKey(entity string, unixNano int64, id string) backend.Key {
	return backend.NewKey(eventMarker+entity, fmt.Sprintf("%s%020d#%s", eventMarker, unixNano, id))
}

// traceContext renders the active span context as a W3C traceparent.
func traceContext(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), sc.TraceFlags())
}
