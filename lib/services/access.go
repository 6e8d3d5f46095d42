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

package services

import "context"

// Access is the RBAC repository contract. Implementations are safe for
// concurrent use; all methods honor context cancellation.
//
// Errors follow the trace taxonomy: trace.BadParameter for invalid names,
// trace.NotFound for a missing parent entity, trace.AlreadyExists for
// create races, trace.CompareFailed for optimistic-concurrency losses and
// events.PersistenceError when the entity write committed but the audit
// event did not.
type Access interface {
	// CreateResource registers a new resource.
	CreateResource(ctx context.Context, name string) (*Resource, error)

	// GetResource returns a resource with its scopes and roles
	// materialized, or trace.NotFound.
	GetResource(ctx context.Context, name string) (*ResourceInfo, error)

	// GetResources returns all resource names, sorted ascending.
	GetResources(ctx context.Context) ([]string, error)

	// DeleteResource removes a resource and, transitively, its scopes,
	// roles and assignments under both views. Deleting an absent resource
	// is a no-op.
	DeleteResource(ctx context.Context, name string) error

	// CreateScope registers a scope under an existing resource.
	CreateScope(ctx context.Context, resource, scope string) (*Scope, error)

	// GetScope returns a single scope or trace.NotFound.
	GetScope(ctx context.Context, resource, scope string) (*Scope, error)

	// DeleteScope removes a scope. Assignments are not touched: scopes
	// gate access at read time, not per assignment.
	DeleteScope(ctx context.Context, resource, scope string) error

	// CreateRole registers a role under an existing resource.
	CreateRole(ctx context.Context, resource, role string) (*Role, error)

	// GetRole returns a single role or trace.NotFound.
	GetRole(ctx context.Context, resource, role string) (*Role, error)

	// DeleteRole removes a role and, transitively, all assignments
	// referencing it under both views.
	DeleteRole(ctx context.Context, resource, role string) error

	// CreateAssignment binds a principal to an existing role of an
	// existing resource, writing both twin rows.
	CreateAssignment(ctx context.Context, resource, role, principal string) (*Assignment, error)

	// DeleteAssignment removes both twin rows of an assignment. Exactly
	// one of two concurrent deletes succeeds; the loser observes
	// trace.CompareFailed unless the rows were already gone.
	DeleteAssignment(ctx context.Context, resource, role, principal string) error

	// GetPrincipalsForRole returns the principals assigned to a role,
	// sorted ascending.
	GetPrincipalsForRole(ctx context.Context, resource, role string) ([]string, error)

	// GetPrincipalAccess returns the principal's effective roles and
	// scopes on a resource. An empty or default scope expands to all of
	// the resource's scopes.
	GetPrincipalAccess(ctx context.Context, principal, resource, scope string) (*PrincipalAccess, error)

	// DeletePrincipal removes every assignment held by the principal,
	// along with the by-resource twin rows.
	DeletePrincipal(ctx context.Context, principal string) error
}
