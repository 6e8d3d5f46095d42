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

package local

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/backend/memory"
	"github.com/rolegate/rolegate/lib/events"
	"github.com/rolegate/rolegate/lib/services"
)

func newService(t *testing.T) (*AccessService, *memory.Memory) {
	t.Helper()

	bk, err := memory.New(memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bk.Close()) })

	svc, err := NewAccessService(AccessServiceConfig{Backend: bk})
	require.NoError(t, err)
	return svc, bk
}

// sealer marks plaintext instead of producing real ciphertext so tests can
// assert what was sealed.
type sealer struct{}

func (sealer) Encrypt(plaintext []byte) (string, error)  { return "sealed:" + string(plaintext), nil }
func (sealer) Decrypt(ciphertext string) ([]byte, error) { return []byte(ciphertext), nil }

func newServiceWithEvents(t *testing.T, policy events.Policy) (*AccessService, *events.Recorder) {
	t.Helper()

	bk, err := memory.New(memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bk.Close()) })

	recorder, err := events.NewRecorder(events.RecorderConfig{
		Backend:   bk,
		Policy:    policy,
		Encryptor: sealer{},
	})
	require.NoError(t, err)

	svc, err := NewAccessService(AccessServiceConfig{Backend: bk, Events: recorder})
	require.NoError(t, err)
	return svc, recorder
}

func TestAccessServiceRequiresEncryptorForAllChanges(t *testing.T) {
	t.Parallel()

	bk, err := memory.New(memory.Config{})
	require.NoError(t, err)

	// the default diffing policy needs an encryptor because assignment
	// diffs seal principal identifiers
	recorder, err := events.NewRecorder(events.RecorderConfig{Backend: bk, Policy: events.AllChanges})
	require.NoError(t, err)
	_, err = NewAccessService(AccessServiceConfig{Backend: bk, Events: recorder})
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)

	// NoChanges never diffs, so no encryptor is needed
	recorder, err = events.NewRecorder(events.RecorderConfig{Backend: bk, Policy: events.NoChanges})
	require.NoError(t, err)
	_, err = NewAccessService(AccessServiceConfig{Backend: bk, Events: recorder})
	require.NoError(t, err)
}

func TestResourceLifecycle(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	resource, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	require.Equal(t, "doc://readme", resource.Name)

	_, err = svc.CreateResource(ctx, "doc://readme")
	require.True(t, trace.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	_, err = svc.CreateResource(ctx, "")
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
	_, err = svc.CreateResource(ctx, "a#b")
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)

	for _, scope := range []string{"write", "read"} {
		_, err = svc.CreateScope(ctx, "doc://readme", scope)
		require.NoError(t, err)
	}
	for _, role := range []string{"owner", "editor"} {
		_, err = svc.CreateRole(ctx, "doc://readme", role)
		require.NoError(t, err)
	}

	info, err := svc.GetResource(ctx, "doc://readme")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(&services.ResourceInfo{
		Name:   "doc://readme",
		Scopes: []string{"read", "write"},
		Roles:  []string{"editor", "owner"},
	}, info))

	_, err = svc.GetResource(ctx, "doc://missing")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	_, err = svc.CreateResource(ctx, "doc://api")
	require.NoError(t, err)
	names, err := svc.GetResources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"doc://api", "doc://readme"}, names)

	// the cascade leaves no rows behind
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteResource(ctx, "doc://readme"))
	require.Equal(t, 1, bk.Len()) // only doc://api remains

	_, err = svc.GetResource(ctx, "doc://readme")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	// deleting again is a no-op
	require.NoError(t, svc.DeleteResource(ctx, "doc://readme"))
}

func TestScopeLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateScope(ctx, "doc://readme", "read")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	_, err = svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)

	scope, err := svc.CreateScope(ctx, "doc://readme", "read")
	require.NoError(t, err)
	require.Equal(t, "read", scope.Name)

	_, err = svc.CreateScope(ctx, "doc://readme", "read")
	require.True(t, trace.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	got, err := svc.GetScope(ctx, "doc://readme", "read")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(scope, got))

	_, err = svc.GetScope(ctx, "doc://readme", "write")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	require.NoError(t, svc.DeleteScope(ctx, "doc://readme", "read"))
	_, err = svc.GetScope(ctx, "doc://readme", "read")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	require.NoError(t, svc.DeleteScope(ctx, "doc://readme", "read"))
}

func TestRoleLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "doc://readme", "editor")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	_, err = svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)

	role, err := svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.True(t, trace.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	got, err := svc.GetRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(role, got))

	require.NoError(t, svc.DeleteRole(ctx, "doc://readme", "editor"))
	_, err = svc.GetRole(ctx, "doc://readme", "editor")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	require.NoError(t, svc.DeleteRole(ctx, "doc://readme", "editor"))
}

func TestAssignmentLifecycle(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	_, err = svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)

	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)

	assignment, err := svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(&services.Assignment{
		ResourceName: "doc://readme",
		RoleName:     "editor",
		PrincipalID:  "alice",
	}, assignment))

	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.True(t, trace.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "bob")
	require.NoError(t, err)

	principals, err := svc.GetPrincipalsForRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, principals)

	rows := bk.Len()
	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))
	require.Equal(t, rows-2, bk.Len()) // both twin rows are gone

	principals, err = svc.GetPrincipalsForRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, principals)

	// deleting again is a no-op
	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))
}

func TestCreateAssignmentHealsPartialTwin(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)

	// simulate a half-written pair by removing one twin directly
	require.NoError(t, bk.Delete(ctx,
		assignmentByPrincipalKey("alice", "doc://readme", "editor"), backend.Whatever()))

	// the partial pair counts as absent, the create overwrites it whole
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)

	access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", "")
	require.NoError(t, err)
	require.Equal(t, []string{"editor"}, access.Roles)
}

func TestDeleteAssignmentClearsLeftoverTwin(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)

	// remove the by-resource row, leaving the by-principal twin orphaned
	require.NoError(t, bk.Delete(ctx,
		assignmentByResourceKey("doc://readme", "editor", "alice"), backend.Whatever()))

	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))

	_, err = bk.Get(ctx, assignmentByPrincipalKey("alice", "doc://readme", "editor"))
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)
}

func TestDeleteRoleCascadesAssignments(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	for _, role := range []string{"editor", "viewer"} {
		_, err = svc.CreateRole(ctx, "doc://readme", role)
		require.NoError(t, err)
	}
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "viewer", "alice")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, "doc://readme", "editor"))

	principals, err := svc.GetPrincipalsForRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	require.Empty(t, principals)

	// the by-principal view is purged too
	access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", "")
	require.NoError(t, err)
	require.Equal(t, []string{"viewer"}, access.Roles)
}

func TestGetPrincipalAccess(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	for _, scope := range []string{"read", "write"} {
		_, err = svc.CreateScope(ctx, "doc://readme", scope)
		require.NoError(t, err)
	}
	for _, role := range []string{"editor", "viewer"} {
		_, err = svc.CreateRole(ctx, "doc://readme", role)
		require.NoError(t, err)
	}
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "viewer", "alice")
	require.NoError(t, err)

	t.Run("no scope requested yields all scopes", func(t *testing.T) {
		access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", "")
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(&services.PrincipalAccess{
			PrincipalID:  "alice",
			ResourceName: "doc://readme",
			Scopes:       []string{"read", "write"},
			Roles:        []string{"editor", "viewer"},
		}, access))
	})

	t.Run("default scope expands to all scopes", func(t *testing.T) {
		access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", services.DefaultScopeName)
		require.NoError(t, err)
		require.Equal(t, []string{"read", "write"}, access.Scopes)
	})

	t.Run("specific scope narrows the result", func(t *testing.T) {
		access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", "read")
		require.NoError(t, err)
		require.Equal(t, []string{"read"}, access.Scopes)
	})

	t.Run("unassigned principal has no roles", func(t *testing.T) {
		access, err := svc.GetPrincipalAccess(ctx, "mallory", "doc://readme", "")
		require.NoError(t, err)
		require.Empty(t, access.Roles)
		require.Equal(t, []string{"read", "write"}, access.Scopes)
	})

	t.Run("missing resource answers empty instead of failing", func(t *testing.T) {
		access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://missing", "")
		require.NoError(t, err)
		require.Empty(t, access.Roles)
		require.Empty(t, access.Scopes)
	})
}

func TestGetPrincipalAccessSweepsOrphanedRows(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)

	// simulate an interrupted role cascade: the role row is gone but the
	// assignment rows survived
	require.NoError(t, bk.Delete(ctx, roleKey("doc://readme", "editor"), backend.Whatever()))

	access, err := svc.GetPrincipalAccess(ctx, "alice", "doc://readme", "")
	require.NoError(t, err)
	require.Empty(t, access.Roles)

	// the read swept both views, a role re-create cannot resurrect access
	_, err = bk.Get(ctx, assignmentByResourceKey("doc://readme", "editor", "alice"))
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)
	_, err = bk.Get(ctx, assignmentByPrincipalKey("alice", "doc://readme", "editor"))
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)

	// a by-principal row orphaned by an interrupted resource cascade is
	// swept the same way
	_, byPrincipal, err := assignmentItems(services.Assignment{
		ResourceName: "doc://gone", RoleName: "editor", PrincipalID: "alice",
	})
	require.NoError(t, err)
	_, err = bk.Put(ctx, byPrincipal, backend.Whatever())
	require.NoError(t, err)

	access, err = svc.GetPrincipalAccess(ctx, "alice", "doc://gone", "")
	require.NoError(t, err)
	require.Empty(t, access.Roles)
	_, err = bk.Get(ctx, byPrincipal.Key)
	require.True(t, trace.IsNotFound(err), "expected NotFound, got %v", err)
}

func TestDeletePrincipal(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	for _, resource := range []string{"doc://readme", "doc://api"} {
		_, err := svc.CreateResource(ctx, resource)
		require.NoError(t, err)
		_, err = svc.CreateRole(ctx, resource, "editor")
		require.NoError(t, err)
		_, err = svc.CreateAssignment(ctx, resource, "editor", "alice")
		require.NoError(t, err)
		_, err = svc.CreateAssignment(ctx, resource, "editor", "bob")
		require.NoError(t, err)
	}

	rows := bk.Len()
	require.NoError(t, svc.DeletePrincipal(ctx, "alice"))
	require.Equal(t, rows-4, bk.Len()) // two assignments, two rows each

	for _, resource := range []string{"doc://readme", "doc://api"} {
		principals, err := svc.GetPrincipalsForRole(ctx, resource, "editor")
		require.NoError(t, err)
		require.Equal(t, []string{"bob"}, principals)
	}

	// a principal with no assignments is a no-op
	require.NoError(t, svc.DeletePrincipal(ctx, "alice"))
}

func TestConcurrentAssignmentDelete(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)

	// two deleters observe the same row; the one applying second loses the
	// etag comparison
	key := assignmentByResourceKey("doc://readme", "editor", "alice")
	item, err := bk.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))

	err = bk.Delete(ctx, key, backend.ETag(item.ETag))
	require.True(t, trace.IsCompareFailed(err), "expected CompareFailed, got %v", err)
}

func TestSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	svc, bk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateScope(ctx, "doc://readme", "read")
	require.NoError(t, err)

	// junk rows in the scope and role ranges must not poison reads
	_, err = bk.Put(ctx, backend.Item{
		Key:   backend.NewKey(resourcePartition("doc://readme"), scopeMarker+"junk"),
		Value: []byte("not json"),
	}, backend.Whatever())
	require.NoError(t, err)
	_, err = bk.Put(ctx, backend.Item{
		Key:   backend.NewKey(resourcePartition("doc://readme"), roleMarker+"junk"),
		Value: []byte(`{"resourceName":"doc://other","roleName":"junk"}`),
	}, backend.Whatever())
	require.NoError(t, err)

	info, err := svc.GetResource(ctx, "doc://readme")
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, info.Scopes)
	require.Empty(t, info.Roles)
}

func TestEventsEmitted(t *testing.T) {
	t.Parallel()

	svc, recorder := newServiceWithEvents(t, events.AllChanges)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "doc://readme", "editor")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "doc://readme", "editor", "alice")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))

	recorded, err := recorder.Events(ctx, resourcePartition("doc://readme"))
	require.NoError(t, err)
	require.Len(t, recorded, 3) // role and assignment create, assignment delete

	roleCreate := recorded[0]
	require.Equal(t, events.Created, roleCreate.SaveAction)
	require.Equal(t, roleKey("doc://readme", "editor").Subject, roleCreate.RelatedID)
	requireChange(t, roleCreate, "/roleName", nil, "editor")

	assignmentCreate := recorded[1]
	require.Equal(t, events.Created, assignmentCreate.SaveAction)
	// the principal identifier is sealed, never plaintext
	requireChange(t, assignmentCreate, "/principalId", nil, "sealed:alice")

	assignmentDelete := recorded[2]
	require.Equal(t, events.Deleted, assignmentDelete.SaveAction)
	require.Empty(t, assignmentDelete.Changes)

	// idempotent deletes of absent entities emit nothing
	require.NoError(t, svc.DeleteAssignment(ctx, "doc://readme", "editor", "alice"))
	recorded, err = recorder.Events(ctx, resourcePartition("doc://readme"))
	require.NoError(t, err)
	require.Len(t, recorded, 3)

	// the resource create landed in its own partition
	recorded, err = recorder.Events(ctx, resourceMarker)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	require.Equal(t, events.Created, recorded[0].SaveAction)
}

func TestEventsSurviveEntityDeletion(t *testing.T) {
	t.Parallel()

	svc, recorder := newServiceWithEvents(t, events.AllChanges)
	ctx := context.Background()

	_, err := svc.CreateResource(ctx, "doc://readme")
	require.NoError(t, err)
	_, err = svc.CreateScope(ctx, "doc://readme", "read")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteResource(ctx, "doc://readme"))

	recorded, err := recorder.Events(ctx, resourcePartition("doc://readme"))
	require.NoError(t, err)
	require.Len(t, recorded, 1) // the scope create outlives the cascade
}

func requireChange(t *testing.T, event events.ItemEvent, path string, old, current any) {
	t.Helper()
	for _, change := range event.Changes {
		if change.Path == path {
			require.Equal(t, old, change.Old, "old value at %s", path)
			require.Equal(t, current, change.New, "new value at %s", path)
			return
		}
	}
	t.Fatalf("no change at %s in %+v", path, event.Changes)
}
