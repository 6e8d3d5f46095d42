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

import (
	"strings"
	"unicode/utf8"
)

// NameValidator vets entity names before any I/O happens and designates
// the default scope. Implementations must be safe for concurrent use.
type NameValidator interface {
	// IsValidResourceName reports whether name may identify a resource.
	IsValidResourceName(name string) bool
	// IsValidScopeName reports whether name may identify a scope.
	IsValidScopeName(name string) bool
	// IsValidRoleName reports whether name may identify a role.
	IsValidRoleName(name string) bool
	// IsValidPrincipalID reports whether id may identify a principal.
	IsValidPrincipalID(id string) bool
	// IsDefaultScope reports whether name designates the scope that
	// expands to all scopes of a resource in access queries.
	IsDefaultScope(name string) bool
}

// DefaultScopeName is the scope the stock validator treats as "all scopes
// of the resource".
const DefaultScopeName = "default"

// StandardValidator is the stock NameValidator: names must be non-empty
// valid UTF-8 and must not contain the key marker separator, which would
// make sort-key prefix ranges ambiguous.
type StandardValidator struct {
	// DefaultScope overrides DefaultScopeName when non-empty.
	DefaultScope string
}

// IsValidResourceName implements NameValidator.
func (v StandardValidator) IsValidResourceName(name string) bool { return validName(name) }

// IsValidScopeName implements NameValidator.
func (v StandardValidator) IsValidScopeName(name string) bool { return validName(name) }

// IsValidRoleName implements NameValidator.
func (v StandardValidator) IsValidRoleName(name string) bool { return validName(name) }

// IsValidPrincipalID implements NameValidator.
func (v StandardValidator) IsValidPrincipalID(id string) bool { return validName(id) }

// IsDefaultScope implements NameValidator.
func (v StandardValidator) IsDefaultScope(name string) bool {
	if v.DefaultScope != "" {
		return name == v.DefaultScope
	}
	return name == DefaultScopeName
}

func validName(name string) bool {
	return name != "" && utf8.ValidString(name) && !strings.Contains(name, "#")
}
