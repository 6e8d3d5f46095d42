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

// Package changetrack computes structural diffs between two snapshots of a
// typed entity. Entities are projected to their JSON shape and walked
// against a per-type tracking schema; the result is a stable list of
// changes keyed by RFC 6901 JSON pointers.
package changetrack

// Mark controls whether and how a field participates in diffs.
type Mark int

const (
	// Tracked fields are included in diffs.
	Tracked Mark = iota
	// Untracked fields are pruned from diffs.
	Untracked
	// Encrypted fields are included in diffs, but emitted values are
	// ciphertext, never plaintext.
	Encrypted
)

// Field describes one field of a tracked type.
type Field struct {
	// Name is the field's JSON name.
	Name string
	// Mark controls the field's diff participation.
	Mark Mark
	// Children optionally declare marks for the subfields of a compound
	// field. Children are only eligible when the field itself is Tracked;
	// a compound field with no declared children is walked in full.
	Children []Field
}

// Schema declares the tracked fields of a type, in emission order.
type Schema struct {
	Fields []Field
}

// TrackedField declares a tracked field, optionally with marks for its
// subfields.
func TrackedField(name string, children ...Field) Field {
	return Field{Name: name, Mark: Tracked, Children: children}
}

// UntrackedField declares a field excluded from diffs.
func UntrackedField(name string) Field {
	return Field{Name: name, Mark: Untracked}
}

// EncryptedField declares a field whose diffed values are encrypted before
// emission.
func EncryptedField(name string) Field {
	return Field{Name: name, Mark: Encrypted}
}
