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

import "github.com/rolegate/rolegate/lib/backend"

// Every logical entity is one row of the composite-keyed table. The key
// markers make "list children of X" a partition-equality query with a
// sort-key prefix, and keep the child ranges (SCOPE#, ROLE#,
// ASSIGNMENT#...) disjoint:
//
//	resource   RESOURCE#              / RESOURCE#<resource>
//	scope      RESOURCE#<resource>    / SCOPE#<scope>
//	role       RESOURCE#<resource>    / ROLE#<role>
//	assignment RESOURCE#<resource>    / ASSIGNMENT#ROLE#<role>#PRINCIPAL#<principal>
//	           PRINCIPAL#<principal>  / ASSIGNMENT#RESOURCE#<resource>#ROLE#<role>
//
// Assignments are written under both views so that "principals in role X"
// and "roles of principal P" are both single-partition queries. The
// formatter is total and deterministic and never interprets name content;
// names are vetted upstream by the NameValidator.
const (
	resourceMarker   = "RESOURCE#"
	scopeMarker      = "SCOPE#"
	roleMarker       = "ROLE#"
	assignmentMarker = "ASSIGNMENT#"
	principalMarker  = "PRINCIPAL#"
)

func resourceKey(resource string) backend.Key {
	return backend.NewKey(resourceMarker, resourceMarker+resource)
}

func resourcePartition(resource string) string {
	return resourceMarker + resource
}

func scopeKey(resource, scope string) backend.Key {
	return backend.NewKey(resourcePartition(resource), scopeMarker+scope)
}

func roleKey(resource, role string) backend.Key {
	return backend.NewKey(resourcePartition(resource), roleMarker+role)
}

// assignmentByResourceKey locates the by-resource view of an assignment.
func assignmentByResourceKey(resource, role, principal string) backend.Key {
	return backend.NewKey(resourcePartition(resource), assignmentRolePrefix(role)+principal)
}

// assignmentByPrincipalKey locates the by-principal twin row.
func assignmentByPrincipalKey(principal, resource, role string) backend.Key {
	return backend.NewKey(principalPartition(principal),
		assignmentMarker+resourceMarker+resource+"#"+roleMarker+role)
}

func principalPartition(principal string) string {
	return principalMarker + principal
}

// assignmentRolePrefix is the sort-key prefix of all by-resource
// assignment rows of one role.
func assignmentRolePrefix(role string) string {
	return assignmentMarker + roleMarker + role + "#" + principalMarker
}

// assignmentResourcePrefix is the sort-key prefix of all by-principal
// assignment rows under one resource.
func assignmentResourcePrefix(resource string) string {
	return assignmentMarker + resourceMarker + resource + "#" + roleMarker
}
