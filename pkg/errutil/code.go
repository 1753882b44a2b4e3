// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package errutil

import "github.com/samber/oops"

// Code returns the code carried by err. Wrapped oops errors report the
// innermost code. ok is false when err is not an oops error.
func Code(err error) (code any, ok bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	return oopsErr.Code(), true
}

// HasCode reports whether err is an oops error carrying code.
func HasCode(err error, code string) bool {
	got, ok := Code(err)
	return ok && got == code
}
