package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Matching tiers, tried in order. A row matched by one tier is never
// reconsidered by a later one.
const (
	TierExact      = "exact"
	TierLoose      = "loose"
	TierSystemName = "system_name"
	TierNoSpace    = "no_space"
)

var folder = cases.Fold()

// looseKey folds case and turns ":()/_" and whitespace runs into one space.
func looseKey(v any) string {
	s, ok := table.AsString(v)
	if !ok {
		return table.NullKey
	}
	s = folder.String(s)
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune(":()/_", r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(b.String())
}

// noSpaceKey folds case and drops every whitespace rune.
func noSpaceKey(v any) string {
	s, ok := table.AsString(v)
	if !ok {
		return table.NullKey
	}
	s = folder.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
