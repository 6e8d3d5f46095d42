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

// Package test contains the backend compliance suite run against every
// backend implementation.
package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/lib/backend"
)

// Constructor builds a fresh, empty backend for one subtest.
type Constructor func(t *testing.T) backend.Backend

// RunBackendComplianceSuite runs the condition, batch and range-read
// semantics every backend must share.
func RunBackendComplianceSuite(t *testing.T, newBackend Constructor) {
	t.Run("PutGet", func(t *testing.T) {
		testPutGet(t, newBackend(t))
	})
	t.Run("ConditionNotExists", func(t *testing.T) {
		testConditionNotExists(t, newBackend(t))
	})
	t.Run("ConditionETag", func(t *testing.T) {
		testConditionETag(t, newBackend(t))
	})
	t.Run("DeleteConditions", func(t *testing.T) {
		testDeleteConditions(t, newBackend(t))
	})
	t.Run("BatchWrite", func(t *testing.T) {
		testBatchWrite(t, newBackend(t))
	})
	t.Run("QueryPrefix", func(t *testing.T) {
		testQueryPrefix(t, newBackend(t))
	})
	t.Run("ScanFilter", func(t *testing.T) {
		testScanFilter(t, newBackend(t))
	})
}

func testPutGet(t *testing.T, bk backend.Backend) {
	ctx := context.Background()
	key := backend.NewKey("A#", "B#one")

	_, err := bk.Get(ctx, key)
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	etag, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{"n":1}`)}, backend.Whatever())
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	item, err := bk.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, item.Key)
	require.Equal(t, []byte(`{"n":1}`), item.Value)
	require.Equal(t, etag, item.ETag)

	// unconditional overwrite rotates the etag
	etag2, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{"n":2}`)}, backend.Whatever())
	require.NoError(t, err)
	require.NotEqual(t, etag, etag2)
}

func testConditionNotExists(t *testing.T, bk backend.Backend) {
	ctx := context.Background()
	key := backend.NewKey("A#", "B#one")

	_, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{}`)}, backend.NotExists())
	require.NoError(t, err)

	_, err = bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{}`)}, backend.NotExists())
	require.True(t, trace.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)
}

func testConditionETag(t *testing.T, bk backend.Backend) {
	ctx := context.Background()
	key := backend.NewKey("A#", "B#one")

	etag, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{"n":1}`)}, backend.Whatever())
	require.NoError(t, err)

	// replace with the observed etag wins
	etag2, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{"n":2}`)}, backend.ETag(etag))
	require.NoError(t, err)
	require.NotEqual(t, etag, etag2)

	// the stale etag loses
	_, err = bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{"n":3}`)}, backend.ETag(etag))
	require.True(t, trace.IsCompareFailed(err), "expected CompareFailed, got %v", err)

	// an etag condition against an absent row loses too
	_, err = bk.Put(ctx, backend.Item{Key: backend.NewKey("A#", "B#gone"), Value: []byte(`{}`)}, backend.ETag(etag))
	require.True(t, trace.IsCompareFailed(err), "expected CompareFailed, got %v", err)
}

func testDeleteConditions(t *testing.T, bk backend.Backend) {
	ctx := context.Background()
	key := backend.NewKey("A#", "B#one")

	// deleting an absent row unconditionally is a no-op
	require.NoError(t, bk.Delete(ctx, key, backend.Whatever()))

	etag, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{}`)}, backend.Whatever())
	require.NoError(t, err)

	err = bk.Delete(ctx, key, backend.ETag("bogus"))
	require.True(t, trace.IsCompareFailed(err), "expected CompareFailed, got %v", err)

	require.NoError(t, bk.Delete(ctx, key, backend.ETag(etag)))

	// the second conditional delete observes a concurrently removed row
	err = bk.Delete(ctx, key, backend.ETag(etag))
	require.True(t, trace.IsCompareFailed(err), "expected CompareFailed, got %v", err)

	_, err = bk.Get(ctx, key)
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)
}

func testBatchWrite(t *testing.T, bk backend.Backend) {
	ctx := context.Background()

	var ops []backend.Op
	for i := 0; i < 5; i++ {
		ops = append(ops, backend.PutOp(backend.Item{
			Key:   backend.NewKey("A#", fmt.Sprintf("B#%02d", i)),
			Value: []byte(`{}`),
		}))
	}
	require.NoError(t, bk.BatchWrite(ctx, ops))

	items, err := bk.Query(ctx, backend.QueryParams{Entity: "A#"})
	require.NoError(t, err)
	require.Len(t, items, 5)

	// a mixed batch deletes and writes in one call, absent deletes are no-ops
	require.NoError(t, bk.BatchWrite(ctx, []backend.Op{
		backend.DeleteOp(backend.NewKey("A#", "B#00")),
		backend.DeleteOp(backend.NewKey("A#", "B#absent")),
		backend.PutOp(backend.Item{Key: backend.NewKey("A#", "B#05"), Value: []byte(`{}`)}),
	}))

	items, err = bk.Query(ctx, backend.QueryParams{Entity: "A#"})
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, "B#01", items[0].Key.Subject)
	require.Equal(t, "B#05", items[4].Key.Subject)
}

func testQueryPrefix(t *testing.T, bk backend.Backend) {
	ctx := context.Background()

	seed := []backend.Key{
		backend.NewKey("P#alpha", "C#2"),
		backend.NewKey("P#alpha", "C#1"),
		backend.NewKey("P#alpha", "D#1"),
		backend.NewKey("P#beta", "C#1"),
	}
	for _, key := range seed {
		_, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{}`)}, backend.Whatever())
		require.NoError(t, err)
	}

	items, err := bk.Query(ctx, backend.QueryParams{Entity: "P#alpha", SubjectPrefix: "C#"})
	require.NoError(t, err)

	got := make([]string, 0, len(items))
	for _, item := range items {
		got = append(got, item.Key.Subject)
	}
	require.Empty(t, cmp.Diff([]string{"C#1", "C#2"}, got))

	// an unknown partition yields an empty result, not an error
	items, err = bk.Query(ctx, backend.QueryParams{Entity: "P#gamma"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func testScanFilter(t *testing.T, bk backend.Backend) {
	ctx := context.Background()

	seed := []backend.Key{
		backend.NewKey("R#", "R#bravo"),
		backend.NewKey("R#", "R#alpha"),
		backend.NewKey("R#alpha", "C#1"),
	}
	for _, key := range seed {
		_, err := bk.Put(ctx, backend.Item{Key: key, Value: []byte(`{}`)}, backend.Whatever())
		require.NoError(t, err)
	}

	items, err := bk.Scan(ctx, backend.ScanParams{Entity: "R#", SubjectPrefix: "R#"})
	require.NoError(t, err)

	got := make([]string, 0, len(items))
	for _, item := range items {
		got = append(got, item.Key.Subject)
	}
	require.Empty(t, cmp.Diff([]string{"R#alpha", "R#bravo"}, got))
}
