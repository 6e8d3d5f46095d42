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

type conditionKind int

const (
	conditionWhatever conditionKind = iota
	conditionNotExists
	conditionETag
)

// Condition guards a Put or Delete. The zero value is Whatever.
type Condition struct {
	kind conditionKind
	etag string
}

// Whatever returns a condition that always passes.
func Whatever() Condition {
	return Condition{kind: conditionWhatever}
}

// NotExists returns a condition asserting that the target row is absent.
// A failed assertion surfaces as trace.AlreadyExists.
func NotExists() Condition {
	return Condition{kind: conditionNotExists}
}

// ETag returns a condition asserting that the target row exists and
// currently carries the given version token. A failed assertion surfaces
// as trace.CompareFailed.
func ETag(etag string) Condition {
	return Condition{kind: conditionETag, etag: etag}
}

// IsWhatever reports whether the condition always passes.
func (c Condition) IsWhatever() bool { return c.kind == conditionWhatever }

// IsNotExists reports whether the condition asserts row absence.
func (c Condition) IsNotExists() bool { return c.kind == conditionNotExists }

// IsETag reports whether the condition asserts a version token, returning
// the expected token.
func (c Condition) IsETag() (string, bool) {
	return c.etag, c.kind == conditionETag
}
