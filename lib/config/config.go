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

// Package config loads the YAML file configuration and maps it onto the
// typed configs of the backend, event and service layers.
package config

import (
	"encoding/base64"
	"io"
	"os"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/rolegate/rolegate/lib/backend/dynamo"
	"github.com/rolegate/rolegate/lib/encryptor"
	"github.com/rolegate/rolegate/lib/events"
	"github.com/rolegate/rolegate/lib/services"
)

// FileConfig is the on-disk YAML layout.
//
//	rbac:
//	  table_name: rolegate
//	  region: eu-west-1
//	  event_policy: AllChanges
//	  encryption_key: <base64 of 32 bytes>
type FileConfig struct {
	RBAC RBAC `yaml:"rbac"`
}

// RBAC holds the service section of the file configuration.
type RBAC struct {
	// TableName is the DynamoDB table holding all entity and event rows.
	TableName string `yaml:"table_name"`
	// Region is the AWS region of the table.
	Region string `yaml:"region"`
	// Endpoint overrides the DynamoDB endpoint, used for local stacks.
	Endpoint string `yaml:"endpoint,omitempty"`
	// AccessKey is an optional static AWS access key id.
	AccessKey string `yaml:"access_key,omitempty"`
	// SecretKey is an optional static AWS secret key.
	SecretKey string `yaml:"secret_key,omitempty"`
	// BatchSize caps items per batch write request.
	BatchSize int `yaml:"batch_size,omitempty"`
	// RetryBudget caps retry rounds for unprocessed batch items.
	RetryBudget int `yaml:"retry_budget,omitempty"`
	// EventPolicy is one of AllChanges, NoChanges, Disabled.
	EventPolicy string `yaml:"event_policy,omitempty"`
	// EncryptionKey is the base64-encoded 32-byte key sealing encrypted
	// tracked values in emitted events.
	EncryptionKey string `yaml:"encryption_key,omitempty"`
	// DefaultScope overrides the scope name that expands to all scopes.
	DefaultScope string `yaml:"default_scope,omitempty"`
}

// ReadConfig parses a YAML file configuration from r. Unknown fields are
// rejected to catch typos early.
func ReadConfig(r io.Reader) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if err == io.EOF {
			return &fc, nil
		}
		return nil, trace.BadParameter("failed to parse config: %v", err)
	}
	return &fc, nil
}

// ReadFromFile reads and parses the file configuration at path.
func ReadFromFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// BackendConfig maps the file configuration onto a DynamoDB backend
// config. Validation of the result is left to dynamo.New.
func (fc *FileConfig) BackendConfig() dynamo.Config {
	return dynamo.Config{
		TableName:   fc.RBAC.TableName,
		Region:      fc.RBAC.Region,
		Endpoint:    fc.RBAC.Endpoint,
		AccessKey:   fc.RBAC.AccessKey,
		SecretKey:   fc.RBAC.SecretKey,
		BatchSize:   fc.RBAC.BatchSize,
		RetryBudget: fc.RBAC.RetryBudget,
	}
}

// EventPolicy parses the configured emission policy.
func (fc *FileConfig) EventPolicy() (events.Policy, error) {
	policy, err := events.ParsePolicy(fc.RBAC.EventPolicy)
	return policy, trace.Wrap(err)
}

// Encryptor builds the secretbox encryptor from the configured key.
// Returns nil when no key is configured.
func (fc *FileConfig) Encryptor() (encryptor.Encryptor, error) {
	if fc.RBAC.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(fc.RBAC.EncryptionKey)
	if err != nil {
		return nil, trace.BadParameter("encryption_key is not valid base64: %v", err)
	}
	box, err := encryptor.NewSecretBox(key)
	return box, trace.Wrap(err)
}

// Validator builds the name validator honoring a configured default scope.
func (fc *FileConfig) Validator() services.NameValidator {
	return services.StandardValidator{DefaultScope: fc.RBAC.DefaultScope}
}
