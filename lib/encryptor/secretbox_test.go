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

package encryptor

import (
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey()
	require.NoError(t, err)
	box, err := NewSecretBox(key)
	require.NoError(t, err)

	ciphertext, err := box.Encrypt([]byte("principal-42"))
	require.NoError(t, err)
	require.NotContains(t, ciphertext, "principal-42")

	opened, err := box.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("principal-42"), opened)

	// fresh nonce per message, identical plaintexts never collide
	ciphertext2, err := box.Encrypt([]byte("principal-42"))
	require.NoError(t, err)
	require.NotEqual(t, ciphertext, ciphertext2)
}

func TestSecretBoxRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := NewSecretBox([]byte("short"))
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
}

func TestSecretBoxRejectsTampering(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey()
	require.NoError(t, err)
	box, err := NewSecretBox(key)
	require.NoError(t, err)

	_, err = box.Decrypt("not base64 at all!!!")
	require.Error(t, err)

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	other, err := NewSecretBox(otherKey)
	require.NoError(t, err)

	ciphertext, err := box.Encrypt([]byte("principal-42"))
	require.NoError(t, err)
	_, err = other.Decrypt(ciphertext)
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
}
