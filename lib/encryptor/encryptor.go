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

// Package encryptor seals tracked values before they are persisted in item
// events. Key management is the caller's concern; the library never stores
// key material.
package encryptor

// Encryptor seals and opens small values. Implementations must be safe for
// concurrent use.
type Encryptor interface {
	// Encrypt seals plaintext and returns base64 ciphertext.
	Encrypt(plaintext []byte) (string, error)
	// Decrypt opens base64 ciphertext produced by Encrypt.
	Decrypt(ciphertext string) ([]byte, error)
}
