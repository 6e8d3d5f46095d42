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
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/nacl/secretbox"
)

// KeyLength is the secretbox key size in bytes.
const KeyLength = 32

const nonceLength = 24

// SecretBox implements Encryptor with NaCl secretbox. A random nonce is
// generated per message and prepended to the ciphertext.
type SecretBox struct {
	key [KeyLength]byte
}

// NewSecretBox returns an Encryptor sealed with the given 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != KeyLength {
		return nil, trace.BadParameter("secretbox key must be %d bytes, got %d", KeyLength, len(key))
	}
	var s SecretBox
	copy(s.key[:], key)
	return &s, nil
}

// GenerateKey returns a fresh random secretbox key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, trace.Wrap(err)
	}
	return key, nil
}

// Encrypt seals plaintext and returns base64 ciphertext.
func (s *SecretBox) Encrypt(plaintext []byte) (string, error) {
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", trace.Wrap(err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt.
func (s *SecretBox) Decrypt(ciphertext string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if len(sealed) < nonceLength {
		return nil, trace.BadParameter("ciphertext is too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	opened, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &s.key)
	if !ok {
		return nil, trace.BadParameter("failed to open ciphertext")
	}
	return opened, nil
}
