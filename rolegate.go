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

// Package rolegate contains identifiers shared by all rolegate packages.
package rolegate

const (
	// ComponentKey is the log attribute under which the emitting
	// component is reported.
	ComponentKey = "component"

	// ComponentBackend is the storage abstraction layer.
	ComponentBackend = "backend"

	// ComponentDynamoDB is the DynamoDB storage implementation.
	ComponentDynamoDB = "dynamodb"

	// ComponentMemory is the in-memory storage implementation.
	ComponentMemory = "memory"

	// ComponentAccess is the RBAC repository service.
	ComponentAccess = "access"

	// ComponentEvents is the item event recorder.
	ComponentEvents = "events"
)

// Version is the rolegate library version.
const Version = "0.3.0"
