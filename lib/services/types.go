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

// Package services defines the RBAC domain types and the repository
// contract implemented by lib/services/local.
package services

import "github.com/rolegate/rolegate/lib/changetrack"

// Resource is a protected artifact, identified by an opaque name such as
// a URI. Its scopes and roles are separate child rows; the stored resource
// row carries only the name.
type Resource struct {
	// Name identifies the resource.
	Name string `json:"resourceName"`
}

// ResourceInfo is the read projection of a resource together with its
// materialized children. Scope and role names are sorted ascending.
type ResourceInfo struct {
	// Name identifies the resource.
	Name string `json:"resourceName"`
	// Scopes are the resource's scope names.
	Scopes []string `json:"scopes"`
	// Roles are the resource's role names.
	Roles []string `json:"roles"`
}

// Scope is an authorization boundary owned by a resource.
type Scope struct {
	// ResourceName is the owning resource.
	ResourceName string `json:"resourceName"`
	// Name identifies the scope within the resource.
	Name string `json:"scopeName"`
}

// Role is a role owned by a resource.
type Role struct {
	// ResourceName is the owning resource.
	ResourceName string `json:"resourceName"`
	// Name identifies the role within the resource.
	Name string `json:"roleName"`
}

// Assignment binds a principal to a role under a resource. One logical
// assignment is stored as two twin rows, indexed for opposite query
// directions.
type Assignment struct {
	// ResourceName is the owning resource.
	ResourceName string `json:"resourceName"`
	// RoleName is the assigned role.
	RoleName string `json:"roleName"`
	// PrincipalID is the opaque external principal identifier.
	PrincipalID string `json:"principalId"`
}

// PrincipalAccess is the read projection answering "what does principal P
// hold on resource R". Roles referencing concurrently deleted role rows
// are dropped.
type PrincipalAccess struct {
	// PrincipalID is the principal the access applies to.
	PrincipalID string `json:"principalId"`
	// ResourceName is the resource the access applies to.
	ResourceName string `json:"resourceName"`
	// Scopes are the effective scopes: the single requested scope, or all
	// of the resource's scopes when the default scope was requested.
	Scopes []string `json:"scopes"`
	// Roles are the effective role names, sorted ascending.
	Roles []string `json:"roles"`
}

// Tracking schemas drive the change tracker. Key-derived identifier fields
// are tracked so that creation events enumerate them against the empty
// baseline.
var (
	// ResourceSchema tracks the resource row.
	ResourceSchema = changetrack.Schema{Fields: []changetrack.Field{
		changetrack.TrackedField("resourceName"),
	}}

	// ScopeSchema tracks the scope row.
	ScopeSchema = changetrack.Schema{Fields: []changetrack.Field{
		changetrack.TrackedField("resourceName"),
		changetrack.TrackedField("scopeName"),
	}}

	// RoleSchema tracks the role row.
	RoleSchema = changetrack.Schema{Fields: []changetrack.Field{
		changetrack.TrackedField("resourceName"),
		changetrack.TrackedField("roleName"),
	}}

	// AssignmentSchema tracks the assignment rows. The principal
	// identifier is sealed in emitted diffs: assignments are the only
	// entity carrying external identity material.
	AssignmentSchema = changetrack.Schema{Fields: []changetrack.Field{
		changetrack.TrackedField("resourceName"),
		changetrack.TrackedField("roleName"),
		changetrack.EncryptedField("principalId"),
	}}
)
