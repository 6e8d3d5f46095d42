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

// Package events binds change-tracker output to save actions and persists
// the resulting audit records next to the entities they describe.
package events

import (
	"time"

	"github.com/gravitational/trace"

	"github.com/rolegate/rolegate/lib/changetrack"
)

// SaveAction is the kind of mutation an item event describes.
type SaveAction string

const (
	// Created marks an event recording entity creation.
	Created SaveAction = "CREATED"
	// Updated marks an event recording entity modification.
	Updated SaveAction = "UPDATED"
	// Deleted marks an event recording entity removal.
	Deleted SaveAction = "DELETED"
)

// Policy governs whether events are emitted and whether they carry
// property diffs.
type Policy int

const (
	// AllChanges emits events carrying diffs: creation diffs against an
	// empty baseline, update diffs against the prior snapshot, deletion
	// events with no changes. This is the default.
	AllChanges Policy = iota
	// NoChanges emits events with a nil change list for every action.
	NoChanges
	// Disabled suppresses event emission entirely.
	Disabled
)

// String returns the configuration spelling of the policy.
func (p Policy) String() string {
	switch p {
	case AllChanges:
		return "AllChanges"
	case NoChanges:
		return "NoChanges"
	case Disabled:
		return "Disabled"
	}
	return "unknown"
}

// ParsePolicy parses a configuration value into a Policy. The empty string
// parses to the default AllChanges.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "AllChanges":
		return AllChanges, nil
	case "NoChanges":
		return NoChanges, nil
	case "Disabled":
		return Disabled, nil
	}
	return AllChanges, trace.BadParameter("unknown event policy %q", s)
}

// ItemEvent is an immutable audit record of one mutation.
type ItemEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// PartitionKey is the partition key of the affected row.
	PartitionKey string `json:"partitionKey"`
	// SaveAction is the kind of mutation recorded.
	SaveAction SaveAction `json:"saveAction"`
	// Timestamp is the UTC time the event was recorded.
	Timestamp time.Time `json:"timestamp"`
	// RelatedID is the sort key of the affected row.
	RelatedID string `json:"relatedId"`
	// TraceContext carries the W3C traceparent of the request that caused
	// the mutation, when one was active.
	TraceContext string `json:"traceContext,omitempty"`
	// Changes lists property-level diffs, or is nil when the policy omits
	// them or the action is a deletion.
	Changes []changetrack.Change `json:"changes,omitempty"`
}
