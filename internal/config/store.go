// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package config holds the host's console variable (cvar) store and the
// startup configuration loader that seeds it.
package config

import (
	"sort"
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/oops"
)

// Error codes for configuration failures.
const (
	CodeConfig      = "CONFIG"
	CodeCvarUnset   = "CVAR_UNSET"
	CodeCvarInvalid = "CVAR_INVALID"
	CodeCvarLimit   = "CVAR_LIMIT"
)

type limit struct {
	min, max int
}

// Store is a string-keyed cvar store. It is safe for concurrent use.
type Store struct {
	vars   cmap.ConcurrentMap[string, string]
	limits cmap.ConcurrentMap[string, limit]
}

// NewStore creates an empty cvar store.
func NewStore() *Store {
	return &Store{
		vars:   cmap.New[string](),
		limits: cmap.New[limit](),
	}
}

// Get returns the value of a cvar and whether it is set.
func (s *Store) Get(name string) (string, bool) {
	return s.vars.Get(name)
}

// Set assigns a cvar. Values of cvars registered through SetLimitOnce are
// clamped to their range; non-numeric values for such cvars are rejected.
func (s *Store) Set(name, value string) error {
	if l, ok := s.limits.Get(name); ok {
		clamped, err := clamp(name, value, l)
		if err != nil {
			return err
		}
		value = clamped
	}
	s.vars.Set(name, value)
	return nil
}

// SetOnce sets a cvar only if it is not already set and reports whether it did.
func (s *Store) SetOnce(name, value string) bool {
	return s.vars.SetIfAbsent(name, value)
}

// SetLimitOnce sets a numeric cvar with an allowed range if it is not
// already set and reports whether it did. The range is recorded either way,
// and an existing value is clamped into it.
func (s *Store) SetLimitOnce(name, value string, minimum, maximum int) (bool, error) {
	if minimum > maximum {
		return false, oops.Code(CodeCvarLimit).
			With("cvar", name).
			With("min", minimum).
			With("max", maximum).
			Errorf("invalid range for %s: min %d > max %d", name, minimum, maximum)
	}
	l := limit{min: minimum, max: maximum}
	clamped, err := clamp(name, value, l)
	if err != nil {
		return false, err
	}

	var (
		created  bool
		clampErr error
	)
	s.vars.Upsert(name, clamped, func(exists bool, current, fresh string) string {
		if !exists {
			created = true
			return fresh
		}
		v, err := clamp(name, current, l)
		if err != nil {
			clampErr = err
			return current
		}
		return v
	})
	if clampErr != nil {
		return false, clampErr
	}
	s.limits.Set(name, l)
	return created, nil
}

// GetInt returns a cvar parsed as an integer.
func (s *Store) GetInt(name string) (int, error) {
	raw, ok := s.vars.Get(name)
	if !ok {
		return 0, oops.Code(CodeCvarUnset).With("cvar", name).Errorf("cvar %s is not set", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code(CodeCvarInvalid).With("cvar", name).With("value", raw).Wrap(err)
	}
	return n, nil
}

// GetBool returns a cvar interpreted as an integer flag (non-zero is true).
func (s *Store) GetBool(name string) (bool, error) {
	n, err := s.GetInt(name)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// Keys returns all set cvar names, sorted.
func (s *Store) Keys() []string {
	keys := s.vars.Keys()
	sort.Strings(keys)
	return keys
}

func clamp(name, value string, l limit) (string, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", oops.Code(CodeCvarInvalid).
			With("cvar", name).
			With("value", value).
			Errorf("cvar %s requires an integer, got %q", name, value)
	}
	n = max(l.min, min(n, l.max))
	return strconv.Itoa(n), nil
}
