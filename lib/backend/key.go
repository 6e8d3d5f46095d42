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

package backend

import "fmt"

// Key is the composite (partition, sort) key of one row. Both components
// are opaque to the backend; formatting conventions live with the callers.
type Key struct {
	// Entity is the partition key (entityName).
	Entity string
	// Subject is the sort key (subjectName).
	Subject string
}

// NewKey returns the key for the given partition and sort components.
func NewKey(entity, subject string) Key {
	return Key{Entity: entity, Subject: subject}
}

// IsZero reports whether the key has no components set.
func (k Key) IsZero() bool {
	return k.Entity == "" && k.Subject == ""
}

// String returns a loggable rendering of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Entity, k.Subject)
}
