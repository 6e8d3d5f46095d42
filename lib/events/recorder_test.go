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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/backend/memory"
	"github.com/rolegate/rolegate/lib/changetrack"
)

type account struct {
	Name  string `json:"name"`
	Tier  string `json:"tier"`
	Token string `json:"token"`
}

var accountSchema = changetrack.Schema{Fields: []changetrack.Field{
	changetrack.TrackedField("name"),
	changetrack.TrackedField("tier"),
	changetrack.EncryptedField("token"),
}}

// sealer marks plaintext instead of producing real ciphertext.
type sealer struct{}

func (sealer) Encrypt(plaintext []byte) (string, error) { return "sealed:" + string(plaintext), nil }
func (sealer) Decrypt(ciphertext string) ([]byte, error) { return []byte(ciphertext), nil }

func newRecorder(t *testing.T, policy Policy) (*Recorder, *memory.Memory, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	bk, err := memory.New(memory.Config{Clock: clock})
	require.NoError(t, err)

	recorder, err := NewRecorder(RecorderConfig{
		Backend:   bk,
		Policy:    policy,
		Encryptor: sealer{},
	})
	require.NoError(t, err)
	return recorder, bk, clock
}

func TestRecorderAllChanges(t *testing.T) {
	t.Parallel()

	recorder, _, clock := newRecorder(t, AllChanges)
	ctx := context.Background()
	key := backend.NewKey("ACCOUNT#", "ACCOUNT#alice")

	created := account{Name: "alice", Tier: "free", Token: "t1"}
	require.NoError(t, recorder.Record(ctx, Created, key, accountSchema, nil, created))

	clock.Advance(time.Second)
	updated := account{Name: "alice", Tier: "pro", Token: "t1"}
	require.NoError(t, recorder.Record(ctx, Updated, key, accountSchema, created, updated))

	clock.Advance(time.Second)
	require.NoError(t, recorder.Record(ctx, Deleted, key, accountSchema, updated, nil))

	got, err := recorder.Events(ctx, "ACCOUNT#")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// oldest first
	require.Equal(t, Created, got[0].SaveAction)
	require.Equal(t, Updated, got[1].SaveAction)
	require.Equal(t, Deleted, got[2].SaveAction)
	require.True(t, got[0].Timestamp.Before(got[1].Timestamp))
	require.True(t, got[1].Timestamp.Before(got[2].Timestamp))

	for _, event := range got {
		require.NotEmpty(t, event.ID)
		require.Equal(t, "ACCOUNT#", event.PartitionKey)
		require.Equal(t, "ACCOUNT#alice", event.RelatedID)
	}

	// creation diffs against the empty baseline, the token is sealed
	require.Empty(t, cmp.Diff([]changetrack.Change{
		{Path: "/name", Old: nil, New: "alice"},
		{Path: "/tier", Old: nil, New: "free"},
		{Path: "/token", Old: nil, New: "sealed:t1"},
	}, got[0].Changes))

	// updates diff against the supplied baseline
	require.Empty(t, cmp.Diff([]changetrack.Change{
		{Path: "/tier", Old: "free", New: "pro"},
	}, got[1].Changes))

	// deletions carry no changes
	require.Empty(t, got[2].Changes)
}

func TestRecorderCreatedIgnoresBaseline(t *testing.T) {
	t.Parallel()

	recorder, _, _ := newRecorder(t, AllChanges)
	ctx := context.Background()
	key := backend.NewKey("ACCOUNT#", "ACCOUNT#alice")

	// a stray baseline on a creation is discarded
	stale := account{Name: "stale", Tier: "pro", Token: "t0"}
	require.NoError(t, recorder.Record(ctx, Created, key, accountSchema,
		stale, account{Name: "alice", Tier: "free", Token: "t1"}))

	got, err := recorder.Events(ctx, "ACCOUNT#")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Empty(t, cmp.Diff([]changetrack.Change{
		{Path: "/name", Old: nil, New: "alice"},
		{Path: "/tier", Old: nil, New: "free"},
		{Path: "/token", Old: nil, New: "sealed:t1"},
	}, got[0].Changes))
}

func TestRecorderNoChangesPolicy(t *testing.T) {
	t.Parallel()

	recorder, _, _ := newRecorder(t, NoChanges)
	ctx := context.Background()
	key := backend.NewKey("ACCOUNT#", "ACCOUNT#alice")

	require.NoError(t, recorder.Record(ctx, Created, key, accountSchema,
		nil, account{Name: "alice"}))

	got, err := recorder.Events(ctx, "ACCOUNT#")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, Created, got[0].SaveAction)
	require.Empty(t, got[0].Changes)
}

func TestRecorderDisabledPolicy(t *testing.T) {
	t.Parallel()

	recorder, bk, _ := newRecorder(t, Disabled)
	ctx := context.Background()
	key := backend.NewKey("ACCOUNT#", "ACCOUNT#alice")

	require.NoError(t, recorder.Record(ctx, Created, key, accountSchema,
		nil, account{Name: "alice"}))
	require.Zero(t, bk.Len())
}

func TestRecorderPersistenceError(t *testing.T) {
	t.Parallel()

	bk, err := memory.New(memory.Config{})
	require.NoError(t, err)
	recorder, err := NewRecorder(RecorderConfig{
		Backend: failingBackend{Backend: bk},
		Policy:  NoChanges,
	})
	require.NoError(t, err)

	err = recorder.Record(context.Background(), Created,
		backend.NewKey("ACCOUNT#", "ACCOUNT#alice"), accountSchema, nil, account{Name: "alice"})
	require.True(t, IsPersistenceError(err), "expected PersistenceError, got %v", err)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Error(t, pe.Unwrap())
}

func TestRecorderMissingEncryptorFailsPostCommit(t *testing.T) {
	t.Parallel()

	bk, err := memory.New(memory.Config{})
	require.NoError(t, err)
	recorder, err := NewRecorder(RecorderConfig{Backend: bk, Policy: AllChanges})
	require.NoError(t, err)
	require.False(t, recorder.Encrypts())

	// diffing an encrypted field without an encryptor is an event-side
	// failure of a committed write, not a bad request
	err = recorder.Record(context.Background(), Created,
		backend.NewKey("ACCOUNT#", "ACCOUNT#alice"), accountSchema,
		nil, account{Name: "alice", Token: "t1"})
	require.True(t, IsPersistenceError(err), "expected PersistenceError, got %v", err)
	require.Zero(t, bk.Len())
}

func TestRecorderSkipsMalformedEvents(t *testing.T) {
	t.Parallel()

	recorder, bk, _ := newRecorder(t, NoChanges)
	ctx := context.Background()

	require.NoError(t, recorder.Record(ctx, Created,
		backend.NewKey("ACCOUNT#", "ACCOUNT#alice"), accountSchema, nil, account{Name: "alice"}))

	// a corrupt row in the shadow partition is skipped, not fatal
	_, err := bk.Put(ctx, backend.Item{
		Key:   backend.NewKey("EVENT#ACCOUNT#", "EVENT#00000000000000000000#junk"),
		Value: []byte("not json"),
	}, backend.Whatever())
	require.NoError(t, err)

	got, err := recorder.Events(ctx, "ACCOUNT#")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for value, want := range map[string]Policy{
		"":           AllChanges,
		"AllChanges": AllChanges,
		"NoChanges":  NoChanges,
		"Disabled":   Disabled,
	} {
		got, err := ParsePolicy(value)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParsePolicy("sometimes")
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
}

// failingBackend fails every Put, standing in for a throttled table.
type failingBackend struct {
	backend.Backend
}

func (failingBackend) Put(context.Context, backend.Item, backend.Condition) (string, error) {
	return "", trace.LimitExceeded("throughput exceeded")
}
