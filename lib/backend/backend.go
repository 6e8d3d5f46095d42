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

// Package backend provides the storage abstraction for a single wide-row
// table keyed by a composite (entity, subject) pair. Implementations are
// expected to offer strongly consistent reads and conditional writes.
package backend

import (
	"context"
	"sort"

	"github.com/jonboulle/clockwork"
)

// Backend abstracts the composite-keyed table. All reads are strongly
// consistent. Every successful write assigns the affected row a fresh ETag.
//
// Implementations normalize their native failures into the trace taxonomy:
// trace.NotFound for missing rows, trace.AlreadyExists for a failed
// NotExists condition, trace.CompareFailed for a failed ETag condition,
// trace.LimitExceeded for throttling that outlived the retry budget and
// trace.ConnectionProblem for transient transport or server failures.
type Backend interface {
	// Put writes an item subject to the supplied condition and returns the
	// item's new ETag.
	Put(ctx context.Context, item Item, cond Condition) (string, error)

	// Get returns a single item or trace.NotFound.
	Get(ctx context.Context, key Key) (*Item, error)

	// Delete removes an item subject to the supplied condition. Deleting a
	// row that does not exist returns trace.NotFound unless the condition
	// is Whatever, in which case it is a no-op.
	Delete(ctx context.Context, key Key, cond Condition) error

	// BatchWrite applies a mix of unconditional puts and deletes, splitting
	// them into backend-sized chunks and draining unprocessed operations
	// with backoff until the retry budget is exhausted.
	BatchWrite(ctx context.Context, ops []Op) error

	// Query returns all items in the partition params.Entity whose subject
	// begins with params.SubjectPrefix, following pagination internally.
	Query(ctx context.Context, params QueryParams) ([]Item, error)

	// Scan walks the table with a filter equivalent to
	// `entity = params.Entity AND begins_with(subject, params.SubjectPrefix)`.
	Scan(ctx context.Context, params ScanParams) ([]Item, error)

	// Clock returns the clock used by this backend.
	Clock() clockwork.Clock

	// Close releases all resources held by the backend.
	Close() error
}

// Item is one row of the table.
type Item struct {
	// Key is the composite row key.
	Key Key
	// Value is the row payload, a JSON document produced by the entity
	// mappers. The backend treats it as opaque.
	Value []byte
	// ETag is the row's opaque version token. Set by the backend on every
	// successful write; ignored on input except through conditions.
	ETag string
}

// QueryParams select a single partition, optionally narrowed by a subject
// prefix.
type QueryParams struct {
	// Entity is the partition key, matched exactly.
	Entity string
	// SubjectPrefix, if non-empty, restricts results to subjects with this
	// prefix.
	SubjectPrefix string
}

// ScanParams describe a filtered full-table walk.
type ScanParams struct {
	// Entity is the partition key, matched exactly by the filter.
	Entity string
	// SubjectPrefix, if non-empty, restricts results to subjects with this
	// prefix.
	SubjectPrefix string
}

// Op is one element of a batch write.
type Op struct {
	put    *Item
	delete *Key
}

// PutOp returns a batch operation that writes item unconditionally.
func PutOp(item Item) Op {
	return Op{put: &item}
}

// DeleteOp returns a batch operation that removes the row at key. Deleting
// an absent row is a no-op.
func DeleteOp(key Key) Op {
	return Op{delete: &key}
}

// Put returns the item written by this operation, or nil if it is a delete.
func (o Op) Put() *Item { return o.put }

// Delete returns the key removed by this operation, or nil if it is a put.
func (o Op) Delete() *Key { return o.delete }

// SortItems orders items by key ascending, the order DynamoDB-class stores
// return range reads in.
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Key.Entity != items[j].Key.Entity {
			return items[i].Key.Entity < items[j].Key.Entity
		}
		return items[i].Key.Subject < items[j].Key.Subject
	})
}
