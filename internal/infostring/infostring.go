// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package infostring decodes the backslash-delimited key/value strings the
// game server uses for server info, player userinfo and similar payloads:
//
//	\key1\value1\key2\value2
//
// The leading backslash is optional. Only decoding is provided.
package infostring

import (
	"iter"
	"strings"

	"github.com/samber/oops"
)

// CodeMalformed is the error code for info strings with an odd token count.
const CodeMalformed = "MALFORMED_INFO_STRING"

// Vars is a decoded info string that remembers the order keys were first seen.
type Vars struct {
	keys   []string
	values map[string]string
}

// Get returns the value for key.
func (v *Vars) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Keys returns the keys in encounter order.
func (v *Vars) Keys() []string {
	keys := make([]string, len(v.keys))
	copy(keys, v.keys)
	return keys
}

// Len returns the number of distinct keys.
func (v *Vars) Len() int {
	return len(v.keys)
}

// All iterates key/value pairs in encounter order.
func (v *Vars) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range v.keys {
			if !yield(k, v.values[k]) {
				return
			}
		}
	}
}

// Map returns the pairs as an unordered map. The map is a copy.
func (v *Vars) Map() map[string]string {
	m := make(map[string]string, len(v.values))
	for k, val := range v.values {
		m[k] = val
	}
	return m
}

func (v *Vars) set(key, value string) {
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Decode parses an info string into an unordered map.
func Decode(s string) (map[string]string, error) {
	vars, err := DecodeOrdered(s)
	if err != nil {
		return nil, err
	}
	return vars.Map(), nil
}

// DecodeOrdered parses an info string, keeping keys in encounter order.
// A repeated key keeps its first position and takes the last value.
// Empty or whitespace-only input yields an empty result.
func DecodeOrdered(s string) (*Vars, error) {
	vars := &Vars{values: make(map[string]string)}
	if strings.TrimSpace(s) == "" {
		return vars, nil
	}

	tokens := strings.Split(strings.TrimLeft(s, `\`), `\`)
	if len(tokens)%2 != 0 {
		return nil, oops.Code(CodeMalformed).
			In("infostring").
			With("input", s).
			Errorf("uneven number of keys and values: %s", s)
	}

	for i := 0; i < len(tokens); i += 2 {
		vars.set(tokens[i], tokens[i+1])
	}
	return vars, nil
}
