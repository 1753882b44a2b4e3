// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// TestingT is the part of *testing.T the assertions use.
type TestingT interface {
	assert.TestingT
	Helper()
}

// AssertErrorCode fails t unless err is an oops error carrying code.
func AssertErrorCode(t TestingT, err error, code string) bool {
	t.Helper()
	if !assert.Error(t, err) {
		return false
	}
	got, ok := Code(err)
	if !assert.True(t, ok, "expected an oops error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, got, "error: %v", err)
}

// AssertErrorContext fails t unless err is an oops error whose context
// holds key with value.
func AssertErrorContext(t TestingT, err error, key string, value any) bool {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !assert.True(t, ok, "expected an oops error, got %T: %v", err, err) {
		return false
	}
	ctx := oopsErr.Context()
	if !assert.Contains(t, ctx, key, "error: %v", err) {
		return false
	}
	return assert.Equal(t, value, ctx[key], "context %q", key)
}
