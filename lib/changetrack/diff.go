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

package changetrack

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/gravitational/trace"
)

// Change is one property-level difference between two snapshots.
type Change struct {
	// Path is an RFC 6901 JSON pointer into the entity.
	Path string `json:"path"`
	// Old is the baseline value at Path, nil when the property was added.
	Old any `json:"oldValue"`
	// New is the current value at Path, nil when the property was removed.
	New any `json:"newValue"`
}

// Encrypter seals plaintext tracked values before they are emitted in a
// change. Implementations return base64 ciphertext.
type Encrypter interface {
	Encrypt(plaintext []byte) (string, error)
}

// Diff projects baseline and current to their JSON shape and walks both in
// parallel against the schema. The returned changes are ordered by a
// depth-first traversal in declared-field order, arrays by index, maps by
// key. Baseline or current may be nil, standing in for an absent snapshot.
//
// Values of Encrypted fields are run through enc before emission; plaintext
// never appears in the result. enc may be nil when the schema declares no
// encrypted fields.
func Diff(schema Schema, baseline, current any, enc Encrypter) ([]Change, error) {
	old, err := project(baseline)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	cur, err := project(current)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	w := &walker{enc: enc}
	if err := w.fields("", schema.Fields, old, cur); err != nil {
		return nil, trace.Wrap(err)
	}
	return w.changes, nil
}

// project converts a typed entity into its JSON shape: maps, slices and
// primitives only.
func project(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, trace.Wrap(err)
	}
	return out, nil
}

type walker struct {
	enc     Encrypter
	changes []Change
}

// fields walks a declared field list over two object projections. A nil
// side stands in for an empty object.
func (w *walker) fields(path string, fields []Field, old, cur any) error {
	oldMap, err := asObject(old)
	if err != nil {
		return trace.Wrap(err)
	}
	curMap, err := asObject(cur)
	if err != nil {
		return trace.Wrap(err)
	}

	for _, field := range fields {
		fieldPath := path + "/" + escapePointer(field.Name)
		ov, nv := oldMap[field.Name], curMap[field.Name]

		switch field.Mark {
		case Untracked:
			// pruned subtree
		case Encrypted:
			if err := w.value(fieldPath, ov, nv, true); err != nil {
				return trace.Wrap(err)
			}
		case Tracked:
			if len(field.Children) == 0 {
				if err := w.value(fieldPath, ov, nv, false); err != nil {
					return trace.Wrap(err)
				}
				continue
			}
			if err := w.fields(fieldPath, field.Children, ov, nv); err != nil {
				return trace.Wrap(err)
			}
		default:
			return trace.BadParameter("unknown tracking mark %v on field %q", field.Mark, field.Name)
		}
	}
	return nil
}

// value diffs two JSON-shaped values generically. Missing or null sides
// contribute nil leaves so that additions and removals surface per leaf.
func (w *walker) value(path string, old, cur any, encrypted bool) error {
	if reflect.DeepEqual(old, cur) {
		return nil
	}

	oldObj, oldIsObj := old.(map[string]any)
	curObj, curIsObj := cur.(map[string]any)
	if (oldIsObj || old == nil) && (curIsObj || cur == nil) && (oldIsObj || curIsObj) {
		for _, key := range unionKeys(oldObj, curObj) {
			if err := w.value(path+"/"+escapePointer(key), oldObj[key], curObj[key], encrypted); err != nil {
				return trace.Wrap(err)
			}
		}
		return nil
	}

	oldArr, oldIsArr := old.([]any)
	curArr, curIsArr := cur.([]any)
	if (oldIsArr || old == nil) && (curIsArr || cur == nil) && (oldIsArr || curIsArr) {
		for i := range max(len(oldArr), len(curArr)) {
			var ov, nv any
			if i < len(oldArr) {
				ov = oldArr[i]
			}
			if i < len(curArr) {
				nv = curArr[i]
			}
			if err := w.value(path+"/"+strconv.Itoa(i), ov, nv, encrypted); err != nil {
				return trace.Wrap(err)
			}
		}
		return nil
	}

	// leaf, or a type change treated as one
	return trace.Wrap(w.emit(path, old, cur, encrypted))
}

func (w *walker) emit(path string, old, cur any, encrypted bool) error {
	if encrypted {
		var err error
		if old, err = w.seal(old); err != nil {
			return trace.Wrap(err)
		}
		if cur, err = w.seal(cur); err != nil {
			return trace.Wrap(err)
		}
	}
	w.changes = append(w.changes, Change{Path: path, Old: old, New: cur})
	return nil
}

// seal encrypts one side of a change. Nil values stay nil so that
// additions and removals remain distinguishable.
func (w *walker) seal(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if w.enc == nil {
		return nil, trace.BadParameter("schema declares encrypted fields but no encrypter is configured")
	}

	var plaintext []byte
	if s, ok := v.(string); ok {
		plaintext = []byte(s)
	} else {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		plaintext = data
	}

	ciphertext, err := w.enc.Encrypt(plaintext)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return ciphertext, nil
}

func asObject(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	default:
		return nil, trace.BadParameter("expected an object projection, got %T", v)
	}
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// escapePointer escapes one reference token per RFC 6901.
func escapePointer(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}
