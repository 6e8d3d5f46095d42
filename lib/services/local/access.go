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

// Package local implements the RBAC repository against a composite-keyed
// backend table.
package local

import (
	"context"
	"log/slog"
	"sort"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rolegate/rolegate"
	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/changetrack"
	"github.com/rolegate/rolegate/lib/events"
	"github.com/rolegate/rolegate/lib/services"
)

// AccessServiceConfig holds configuration for an AccessService.
type AccessServiceConfig struct {
	// Backend is the composite-keyed table.
	Backend backend.Backend
	// Validator vets entity names, defaults to services.StandardValidator.
	Validator services.NameValidator
	// Events records item events for every mutation. Optional; when nil
	// no events are emitted.
	Events *events.Recorder
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *AccessServiceConfig) CheckAndSetDefaults() error {
	if c.Backend == nil {
		return trace.BadParameter("missing access service backend")
	}
	// assignment diffs always carry sealed principal identifiers, so a
	// recorder that diffs must be able to encrypt
	if c.Events != nil && c.Events.Policy() == events.AllChanges && !c.Events.Encrypts() {
		return trace.BadParameter("an event recorder with the AllChanges policy requires an encryptor")
	}
	if c.Validator == nil {
		c.Validator = services.StandardValidator{}
	}
	return nil
}

// AccessService manages backend state for resources, scopes, roles and
// principal-role assignments. It implements services.Access.
type AccessService struct {
	bk     backend.Backend
	vet    services.NameValidator
	events *events.Recorder
	logger *slog.Logger
}

// NewAccessService creates an AccessService for the given backend.
func NewAccessService(cfg AccessServiceConfig) (*AccessService, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &AccessService{
		bk:     cfg.Backend,
		vet:    cfg.Validator,
		events: cfg.Events,
		logger: slog.With(rolegate.ComponentKey, rolegate.ComponentAccess),
	}, nil
}

// CreateResource registers a new resource. A concurrent create of the
// same name loses with trace.AlreadyExists.
func (s *AccessService) CreateResource(ctx context.Context, name string) (*services.Resource, error) {
	if !s.vet.IsValidResourceName(name) {
		return nil, trace.BadParameter("invalid resource name %q", name)
	}

	resource := services.Resource{Name: name}
	item, err := resourceToItem(resource)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if _, err := s.bk.Put(ctx, item, backend.NotExists()); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.record(ctx, events.Created, item.Key, services.ResourceSchema, nil, resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

// GetResource returns a resource with its scopes and roles materialized,
// sorted ascending. The resource row, the scope range and the role range
// are fetched concurrently.
func (s *AccessService) GetResource(ctx context.Context, name string) (*services.ResourceInfo, error) {
	if !s.vet.IsValidResourceName(name) {
		return nil, trace.BadParameter("invalid resource name %q", name)
	}

	var scopes, roles []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item, err := s.bk.Get(gctx, resourceKey(name))
		if err != nil {
			if trace.IsNotFound(err) {
				return trace.NotFound("resource %q is not found", name)
			}
			return trace.Wrap(err)
		}
		if _, err := resourceFromItem(*item); err != nil {
			return trace.Wrap(err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		scopes, err = s.listScopeNames(gctx, name)
		return trace.Wrap(err)
	})
	g.Go(func() error {
		var err error
		roles, err = s.listRoleNames(gctx, name)
		return trace.Wrap(err)
	})
	if err := g.Wait(); err != nil {
		return nil, trace.Wrap(err)
	}

	return &services.ResourceInfo{Name: name, Scopes: scopes, Roles: roles}, nil
}

// GetResources returns all resource names, sorted ascending.
func (s *AccessService) GetResources(ctx context.Context) ([]string, error) {
	items, err := s.bk.Scan(ctx, backend.ScanParams{
		Entity:        resourceMarker,
		SubjectPrefix: resourceMarker,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		resource, err := resourceFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed resource row", "error", err, "key", item.Key.String())
			continue
		}
		names = append(names, resource.Name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteResource removes the resource row and, concurrently, all of its
// scopes, roles and assignments under both views. Deleting an absent
// resource is a no-op and emits no event.
func (s *AccessService) DeleteResource(ctx context.Context, name string) error {
	if !s.vet.IsValidResourceName(name) {
		return trace.BadParameter("invalid resource name %q", name)
	}

	item, err := s.bk.Get(ctx, resourceKey(name))
	if err != nil {
		if trace.IsNotFound(err) {
			return nil
		}
		return trace.Wrap(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trace.Wrap(s.bk.Delete(gctx, item.Key, backend.ETag(item.ETag)))
	})
	g.Go(func() error {
		return trace.Wrap(s.deleteChildRange(gctx, resourcePartition(name), scopeMarker))
	})
	g.Go(func() error {
		return trace.Wrap(s.deleteChildRange(gctx, resourcePartition(name), roleMarker))
	})
	g.Go(func() error {
		return trace.Wrap(s.deleteAssignmentRange(gctx, resourcePartition(name), assignmentMarker))
	})
	if err := g.Wait(); err != nil {
		return trace.Wrap(err)
	}

	return s.record(ctx, events.Deleted, item.Key, services.ResourceSchema, services.Resource{Name: name}, nil)
}

// CreateScope registers a scope under an existing resource.
func (s *AccessService) CreateScope(ctx context.Context, resource, scope string) (*services.Scope, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidScopeName(scope) {
		return nil, trace.BadParameter("invalid scope name %q", scope)
	}
	if err := s.requireResource(ctx, resource); err != nil {
		return nil, trace.Wrap(err)
	}

	sc := services.Scope{ResourceName: resource, Name: scope}
	item, err := scopeToItem(sc)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if _, err := s.bk.Put(ctx, item, backend.NotExists()); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.record(ctx, events.Created, item.Key, services.ScopeSchema, nil, sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetScope returns a single scope or trace.NotFound.
func (s *AccessService) GetScope(ctx context.Context, resource, scope string) (*services.Scope, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidScopeName(scope) {
		return nil, trace.BadParameter("invalid scope name %q", scope)
	}

	item, err := s.bk.Get(ctx, scopeKey(resource, scope))
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.NotFound("scope %q of resource %q is not found", scope, resource)
		}
		return nil, trace.Wrap(err)
	}
	sc, err := scopeFromItem(*item)
	return sc, trace.Wrap(err)
}

// DeleteScope removes a scope. Assignments are untouched: scopes gate
// access at read time, not per assignment. Deleting an absent scope is a
// no-op.
func (s *AccessService) DeleteScope(ctx context.Context, resource, scope string) error {
	if !s.vet.IsValidResourceName(resource) {
		return trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidScopeName(scope) {
		return trace.BadParameter("invalid scope name %q", scope)
	}

	item, err := s.bk.Get(ctx, scopeKey(resource, scope))
	if err != nil {
		if trace.IsNotFound(err) {
			return nil
		}
		return trace.Wrap(err)
	}
	if err := s.bk.Delete(ctx, item.Key, backend.ETag(item.ETag)); err != nil {
		return trace.Wrap(err)
	}
	return s.record(ctx, events.Deleted, item.Key, services.ScopeSchema,
		services.Scope{ResourceName: resource, Name: scope}, nil)
}

// CreateRole registers a role under an existing resource.
func (s *AccessService) CreateRole(ctx context.Context, resource, role string) (*services.Role, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return nil, trace.BadParameter("invalid role name %q", role)
	}
	if err := s.requireResource(ctx, resource); err != nil {
		return nil, trace.Wrap(err)
	}

	r := services.Role{ResourceName: resource, Name: role}
	item, err := roleToItem(r)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if _, err := s.bk.Put(ctx, item, backend.NotExists()); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.record(ctx, events.Created, item.Key, services.RoleSchema, nil, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRole returns a single role or trace.NotFound.
func (s *AccessService) GetRole(ctx context.Context, resource, role string) (*services.Role, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return nil, trace.BadParameter("invalid role name %q", role)
	}

	item, err := s.bk.Get(ctx, roleKey(resource, role))
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.NotFound("role %q of resource %q is not found", role, resource)
		}
		return nil, trace.Wrap(err)
	}
	r, err := roleFromItem(*item)
	return r, trace.Wrap(err)
}

// DeleteRole removes the role row and, concurrently, every assignment
// referencing it under both views. Deleting an absent role is a no-op.
func (s *AccessService) DeleteRole(ctx context.Context, resource, role string) error {
	if !s.vet.IsValidResourceName(resource) {
		return trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return trace.BadParameter("invalid role name %q", role)
	}

	item, err := s.bk.Get(ctx, roleKey(resource, role))
	if err != nil {
		if trace.IsNotFound(err) {
			return nil
		}
		return trace.Wrap(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trace.Wrap(s.bk.Delete(gctx, item.Key, backend.ETag(item.ETag)))
	})
	g.Go(func() error {
		return trace.Wrap(s.deleteAssignmentRange(gctx, resourcePartition(resource), assignmentRolePrefix(role)))
	})
	if err := g.Wait(); err != nil {
		return trace.Wrap(err)
	}

	return s.record(ctx, events.Deleted, item.Key, services.RoleSchema,
		services.Role{ResourceName: resource, Name: role}, nil)
}

// CreateAssignment binds a principal to an existing role of an existing
// resource. Both twin rows are written in one batch; a pair with exactly
// one row present is treated as absent and overwritten whole.
func (s *AccessService) CreateAssignment(ctx context.Context, resource, role, principal string) (*services.Assignment, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return nil, trace.BadParameter("invalid role name %q", role)
	}
	if !s.vet.IsValidPrincipalID(principal) {
		return nil, trace.BadParameter("invalid principal id %q", principal)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trace.Wrap(s.requireResource(gctx, resource))
	})
	g.Go(func() error {
		if _, err := s.bk.Get(gctx, roleKey(resource, role)); err != nil {
			if trace.IsNotFound(err) {
				return trace.NotFound("role %q of resource %q is not found", role, resource)
			}
			return trace.Wrap(err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, trace.Wrap(err)
	}

	assignment := services.Assignment{ResourceName: resource, RoleName: role, PrincipalID: principal}
	byResource, byPrincipal, err := assignmentItems(assignment)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	present, err := s.twinRowsPresent(ctx, byResource.Key, byPrincipal.Key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if present {
		return nil, trace.AlreadyExists("assignment of %q to role %q of resource %q already exists",
			principal, role, resource)
	}

	if err := s.bk.BatchWrite(ctx, []backend.Op{
		backend.PutOp(byResource),
		backend.PutOp(byPrincipal),
	}); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.record(ctx, events.Created, byResource.Key, services.AssignmentSchema, nil, assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DeleteAssignment removes both twin rows of an assignment. The delete of
// the by-resource row carries the ETag observed by this call, so exactly
// one of two concurrent deletes wins; the loser sees trace.CompareFailed.
// An already absent assignment is a no-op that still clears a leftover
// twin row.
func (s *AccessService) DeleteAssignment(ctx context.Context, resource, role, principal string) error {
	if !s.vet.IsValidResourceName(resource) {
		return trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return trace.BadParameter("invalid role name %q", role)
	}
	if !s.vet.IsValidPrincipalID(principal) {
		return trace.BadParameter("invalid principal id %q", principal)
	}

	byResourceKey := assignmentByResourceKey(resource, role, principal)
	byPrincipalKey := assignmentByPrincipalKey(principal, resource, role)

	item, err := s.bk.Get(ctx, byResourceKey)
	if err != nil {
		if !trace.IsNotFound(err) {
			return trace.Wrap(err)
		}
		// the pair is absent; clear a half-written twin if one survived
		return trace.Wrap(s.bk.BatchWrite(ctx, []backend.Op{backend.DeleteOp(byPrincipalKey)}))
	}

	if err := s.bk.Delete(ctx, byResourceKey, backend.ETag(item.ETag)); err != nil {
		return trace.Wrap(err)
	}
	if err := s.bk.BatchWrite(ctx, []backend.Op{backend.DeleteOp(byPrincipalKey)}); err != nil {
		return trace.Wrap(err)
	}
	return s.record(ctx, events.Deleted, byResourceKey, services.AssignmentSchema,
		services.Assignment{ResourceName: resource, RoleName: role, PrincipalID: principal}, nil)
}

// GetPrincipalsForRole returns the principals assigned to a role, sorted
// ascending. A missing resource or role yields an empty list.
func (s *AccessService) GetPrincipalsForRole(ctx context.Context, resource, role string) ([]string, error) {
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if !s.vet.IsValidRoleName(role) {
		return nil, trace.BadParameter("invalid role name %q", role)
	}

	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        resourcePartition(resource),
		SubjectPrefix: assignmentRolePrefix(role),
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	principals := make([]string, 0, len(items))
	for _, item := range items {
		assignment, err := assignmentFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed assignment row", "error", err, "key", item.Key.String())
			continue
		}
		principals = append(principals, assignment.PrincipalID)
	}
	sort.Strings(principals)
	return principals, nil
}

// GetPrincipalAccess returns the principal's effective roles and scopes on
// a resource. Assignments referencing roles that no longer exist are
// dropped and their leftover rows swept from both views. Requesting a
// non-default scope narrows the result to that scope; otherwise all of
// the resource's scopes apply.
func (s *AccessService) GetPrincipalAccess(ctx context.Context, principal, resource, scope string) (*services.PrincipalAccess, error) {
	if !s.vet.IsValidPrincipalID(principal) {
		return nil, trace.BadParameter("invalid principal id %q", principal)
	}
	if !s.vet.IsValidResourceName(resource) {
		return nil, trace.BadParameter("invalid resource name %q", resource)
	}
	if scope != "" && !s.vet.IsValidScopeName(scope) {
		return nil, trace.BadParameter("invalid scope name %q", scope)
	}

	info, err := s.GetResource(ctx, resource)
	if err != nil {
		if !trace.IsNotFound(err) {
			return nil, trace.Wrap(err)
		}
		// a deleted resource grants nothing, but the query stays answerable
		info = &services.ResourceInfo{Name: resource}
	}

	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        principalPartition(principal),
		SubjectPrefix: assignmentResourcePrefix(resource),
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	known := make(map[string]struct{}, len(info.Roles))
	for _, role := range info.Roles {
		known[role] = struct{}{}
	}

	roles := make([]string, 0, len(items))
	var stale []backend.Op
	for _, item := range items {
		assignment, err := assignmentFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed assignment row", "error", err, "key", item.Key.String())
			continue
		}
		if _, ok := known[assignment.RoleName]; !ok {
			// rows orphaned by an interrupted cascade; sweep both views
			// so a later role re-create cannot resurrect them
			stale = append(stale,
				backend.DeleteOp(item.Key),
				backend.DeleteOp(assignmentByResourceKey(
					assignment.ResourceName, assignment.RoleName, assignment.PrincipalID)))
			continue
		}
		roles = append(roles, assignment.RoleName)
	}
	sort.Strings(roles)

	// best effort: the read stays answerable when the sweep fails
	if len(stale) > 0 {
		if err := s.bk.BatchWrite(ctx, stale); err != nil {
			s.logger.WarnContext(ctx, "failed to sweep stale assignment rows", "error", err)
		}
	}

	scopes := info.Scopes
	if scope != "" && !s.vet.IsDefaultScope(scope) {
		scopes = []string{scope}
	}
	if scopes == nil {
		scopes = []string{}
	}

	return &services.PrincipalAccess{
		PrincipalID:  principal,
		ResourceName: resource,
		Scopes:       scopes,
		Roles:        roles,
	}, nil
}

// DeletePrincipal removes every assignment held by the principal together
// with the by-resource twin rows.
func (s *AccessService) DeletePrincipal(ctx context.Context, principal string) error {
	if !s.vet.IsValidPrincipalID(principal) {
		return trace.BadParameter("invalid principal id %q", principal)
	}

	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        principalPartition(principal),
		SubjectPrefix: assignmentMarker,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if len(items) == 0 {
		return nil
	}

	var ops []backend.Op
	var deleted []services.Assignment
	for _, item := range items {
		ops = append(ops, backend.DeleteOp(item.Key))
		assignment, err := assignmentFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "deleting malformed assignment row without its twin", "error", err, "key", item.Key.String())
			continue
		}
		ops = append(ops, backend.DeleteOp(
			assignmentByResourceKey(assignment.ResourceName, assignment.RoleName, assignment.PrincipalID)))
		deleted = append(deleted, *assignment)
	}
	if err := s.bk.BatchWrite(ctx, ops); err != nil {
		return trace.Wrap(err)
	}

	for _, assignment := range deleted {
		key := assignmentByResourceKey(assignment.ResourceName, assignment.RoleName, assignment.PrincipalID)
		if err := s.record(ctx, events.Deleted, key, services.AssignmentSchema, assignment, nil); err != nil {
			return err
		}
	}
	return nil
}

// requireResource asserts that the resource row exists.
func (s *AccessService) requireResource(ctx context.Context, resource string) error {
	if _, err := s.bk.Get(ctx, resourceKey(resource)); err != nil {
		if trace.IsNotFound(err) {
			return trace.NotFound("resource %q is not found", resource)
		}
		return trace.Wrap(err)
	}
	return nil
}

// twinRowsPresent reports whether both views of an assignment exist. A
// pair with only one surviving row is treated as absent; the subsequent
// batch write overwrites both.
func (s *AccessService) twinRowsPresent(ctx context.Context, byResource, byPrincipal backend.Key) (bool, error) {
	for _, key := range []backend.Key{byResource, byPrincipal} {
		if _, err := s.bk.Get(ctx, key); err != nil {
			if trace.IsNotFound(err) {
				return false, nil
			}
			return false, trace.Wrap(err)
		}
	}
	return true, nil
}

// listScopeNames returns the resource's scope names sorted ascending,
// skipping rows that fail mapper validation.
func (s *AccessService) listScopeNames(ctx context.Context, resource string) ([]string, error) {
	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        resourcePartition(resource),
		SubjectPrefix: scopeMarker,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		scope, err := scopeFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed scope row", "error", err, "key", item.Key.String())
			continue
		}
		names = append(names, scope.Name)
	}
	sort.Strings(names)
	return names, nil
}

// listRoleNames returns the resource's role names sorted ascending,
// skipping rows that fail mapper validation.
func (s *AccessService) listRoleNames(ctx context.Context, resource string) ([]string, error) {
	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        resourcePartition(resource),
		SubjectPrefix: roleMarker,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		role, err := roleFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed role row", "error", err, "key", item.Key.String())
			continue
		}
		names = append(names, role.Name)
	}
	sort.Strings(names)
	return names, nil
}

// deleteChildRange batch-deletes all rows of one partition with the given
// sort-key prefix. An empty range is a no-op.
func (s *AccessService) deleteChildRange(ctx context.Context, entity, prefix string) error {
	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        entity,
		SubjectPrefix: prefix,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if len(items) == 0 {
		return nil
	}

	ops := make([]backend.Op, 0, len(items))
	for _, item := range items {
		ops = append(ops, backend.DeleteOp(item.Key))
	}
	return trace.Wrap(s.bk.BatchWrite(ctx, ops))
}

// deleteAssignmentRange batch-deletes all by-resource assignment rows with
// the given prefix along with their by-principal twins.
func (s *AccessService) deleteAssignmentRange(ctx context.Context, entity, prefix string) error {
	items, err := s.bk.Query(ctx, backend.QueryParams{
		Entity:        entity,
		SubjectPrefix: prefix,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	if len(items) == 0 {
		return nil
	}

	var ops []backend.Op
	for _, item := range items {
		ops = append(ops, backend.DeleteOp(item.Key))
		assignment, err := assignmentFromItem(item)
		if err != nil {
			s.logger.WarnContext(ctx, "deleting malformed assignment row without its twin", "error", err, "key", item.Key.String())
			continue
		}
		ops = append(ops, backend.DeleteOp(
			assignmentByPrincipalKey(assignment.PrincipalID, assignment.ResourceName, assignment.RoleName)))
	}
	return trace.Wrap(s.bk.BatchWrite(ctx, ops))
}

// record emits one item event when an event recorder is configured. Event
// persistence failures are reported to the caller but never roll back the
// entity write they describe.
func (s *AccessService) record(ctx context.Context, action events.SaveAction, key backend.Key, schema changetrack.Schema, baseline, current any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Record(ctx, action, key, schema, baseline, current)
}
