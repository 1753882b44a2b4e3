// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package config

import (
	"strconv"

	"github.com/samber/oops"
)

// Owner returns the SteamID64 configured as the server owner.
// An unset owner is stored as -1 and reported as an error.
func Owner(s *Store) (int64, error) {
	raw, ok := s.Get(CvarOwner)
	if !ok {
		return 0, oops.Code(CodeCvarUnset).With("cvar", CvarOwner).Errorf("owner is not configured")
	}
	sid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, oops.Code(CodeCvarInvalid).
			With("cvar", CvarOwner).
			With("value", raw).
			Hint("the owner must be a SteamID64").
			Wrap(err)
	}
	if sid == -1 {
		return 0, oops.Code(CodeCvarUnset).With("cvar", CvarOwner).Errorf("owner is not configured")
	}
	return sid, nil
}
