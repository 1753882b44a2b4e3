// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package command

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// CodeEmptyInput is returned for blank command lines.
const CodeEmptyInput = "EMPTY_INPUT"

// Line is a command line with the prefix already removed.
type Line struct {
	Name  string // lowercased first token
	Token string // first token as typed
	Rest  string // text after the name; internal whitespace and color codes kept
	Raw   string
}

// ParseLine splits input into a command name and the rest of the line.
func ParseLine(input string) (Line, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Line{}, oops.Code(CodeEmptyInput).In("command").Errorf("no command given")
	}

	name, rest := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		name = trimmed[:i]
		rest = strings.TrimLeftFunc(trimmed[i:], unicode.IsSpace)
	}
	return Line{Name: strings.ToLower(name), Token: name, Rest: rest, Raw: input}, nil
}

// Args returns the token as typed followed by the whitespace-split rest,
// the way handlers receive them.
func (l Line) Args() []string {
	return append([]string{l.Token}, strings.Fields(l.Rest)...)
}
