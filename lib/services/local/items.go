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
	"encoding/json"

	"github.com/gravitational/trace"

	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/services"
)

// Entity mappers. Each fromItem re-derives the row key from the decoded
// payload and rejects mismatches, so that rows of a different type or
// stale layout returned by coarse filters are skipped instead of
// misinterpreted.

func resourceToItem(r services.Resource) (backend.Item, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return backend.Item{}, trace.Wrap(err)
	}
	return backend.Item{Key: resourceKey(r.Name), Value: value}, nil
}

func resourceFromItem(item backend.Item) (*services.Resource, error) {
	var r services.Resource
	if err := json.Unmarshal(item.Value, &r); err != nil {
		return nil, trace.Wrap(err)
	}
	if item.Key != resourceKey(r.Name) {
		return nil, trace.BadParameter("row at %q does not hold resource %q", item.Key.String(), r.Name)
	}
	return &r, nil
}

func scopeToItem(s services.Scope) (backend.Item, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return backend.Item{}, trace.Wrap(err)
	}
	return backend.Item{Key: scopeKey(s.ResourceName, s.Name), Value: value}, nil
}

func scopeFromItem(item backend.Item) (*services.Scope, error) {
	var s services.Scope
	if err := json.Unmarshal(item.Value, &s); err != nil {
		return nil, trace.Wrap(err)
	}
	if item.Key != scopeKey(s.ResourceName, s.Name) {
		return nil, trace.BadParameter("row at %q does not hold scope %q of resource %q", item.Key.String(), s.Name, s.ResourceName)
	}
	return &s, nil
}

func roleToItem(r services.Role) (backend.Item, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return backend.Item{}, trace.Wrap(err)
	}
	return backend.Item{Key: roleKey(r.ResourceName, r.Name), Value: value}, nil
}

func roleFromItem(item backend.Item) (*services.Role, error) {
	var r services.Role
	if err := json.Unmarshal(item.Value, &r); err != nil {
		return nil, trace.Wrap(err)
	}
	if item.Key != roleKey(r.ResourceName, r.Name) {
		return nil, trace.BadParameter("row at %q does not hold role %q of resource %q", item.Key.String(), r.Name, r.ResourceName)
	}
	return &r, nil
}

// assignmentItems returns both twin rows of one logical assignment. The
// twins carry identical payloads and differ only in their keys.
func assignmentItems(a services.Assignment) (byResource, byPrincipal backend.Item, err error) {
	value, err := json.Marshal(a)
	if err != nil {
		return backend.Item{}, backend.Item{}, trace.Wrap(err)
	}
	byResource = backend.Item{
		Key:   assignmentByResourceKey(a.ResourceName, a.RoleName, a.PrincipalID),
		Value: value,
	}
	byPrincipal = backend.Item{
		Key:   assignmentByPrincipalKey(a.PrincipalID, a.ResourceName, a.RoleName),
		Value: value,
	}
	return byResource, byPrincipal, nil
}

// assignmentFromItem decodes an assignment from either view, validating
// the row key against the view the item was read from.
func assignmentFromItem(item backend.Item) (*services.Assignment, error) {
	var a services.Assignment
	if err := json.Unmarshal(item.Value, &a); err != nil {
		return nil, trace.Wrap(err)
	}
	byResource := assignmentByResourceKey(a.ResourceName, a.RoleName, a.PrincipalID)
	byPrincipal := assignmentByPrincipalKey(a.PrincipalID, a.ResourceName, a.RoleName)
	if item.Key != byResource && item.Key != byPrincipal {
		return nil, trace.BadParameter("row at %q does not hold assignment (%q, %q, %q)",
			item.Key.String(), a.ResourceName, a.RoleName, a.PrincipalID)
	}
	return &a, nil
}
