// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/fragloop/fragloop/pkg/errutil"
)

// recorder collects assertion failures instead of failing the test.
type recorder struct{ failures []string }

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("PLUGIN_LOAD").Errorf("boom")
	assert.True(t, errutil.AssertErrorCode(t, err, "PLUGIN_LOAD"))

	wrapped := oops.With("plugin", "motd").Wrap(err)
	assert.True(t, errutil.AssertErrorCode(t, wrapped, "PLUGIN_LOAD"))
}

func TestAssertErrorCode_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"plain error", errors.New("plain")},
		{"other code", oops.Code("CONFIG").Errorf("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			assert.False(t, errutil.AssertErrorCode(rec, tt.err, "PLUGIN_LOAD"))
			assert.NotEmpty(t, rec.failures)
		})
	}
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("plugin", "motd").Errorf("boom")
	assert.True(t, errutil.AssertErrorContext(t, err, "plugin", "motd"))

	rec := &recorder{}
	assert.False(t, errutil.AssertErrorContext(rec, err, "missing", "x"))
	assert.NotEmpty(t, rec.failures)
}

func TestHasCode(t *testing.T) {
	err := oops.Code("WRONG_CONTEXT").Errorf("boom")
	assert.True(t, errutil.HasCode(err, "WRONG_CONTEXT"))
	assert.False(t, errutil.HasCode(err, "PLUGIN_LOAD"))
	assert.False(t, errutil.HasCode(errors.New("plain"), "WRONG_CONTEXT"))
	assert.False(t, errutil.HasCode(nil, "WRONG_CONTEXT"))

	code, ok := errutil.Code(oops.Wrap(err))
	assert.True(t, ok)
	assert.Equal(t, "WRONG_CONTEXT", code)
}
