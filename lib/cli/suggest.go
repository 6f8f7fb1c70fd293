// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestionDistance is the largest edit distance that still
// produces a "did you mean" hint.
const maxSuggestionDistance = 3

// closest returns the candidate nearest to name, or "" when none is
// within maxSuggestionDistance. Ties go to the earlier candidate.
func closest(name string, candidates []string) string {
	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, candidate := range candidates {
		if distance := levenshtein(name, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// suggestFlag finds the first flag in args that flagSet does not
// define and returns the nearest defined long flag with its "--"
// prefix, or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		if len(name) == 1 && flagSet.ShorthandLookup(name) != nil {
			continue
		}
		var defined []string
		flagSet.VisitAll(func(flag *pflag.Flag) {
			defined = append(defined, flag.Name)
		})
		if match := closest(name, defined); match != "" {
			return "--" + match
		}
		return ""
	}
	return ""
}

// levenshtein is the edit distance between a and b, computed over two
// rows of the distance matrix sized to the shorter string.
func levenshtein(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}
	above := make([]int, len(a)+1)
	row := make([]int, len(a)+1)
	for i := range above {
		above[i] = i
	}
	for j := 0; j < len(b); j++ {
		row[0] = j + 1
		for i := 0; i < len(a); i++ {
			substitution := above[i]
			if a[i] != b[j] {
				substitution++
			}
			row[i+1] = min(above[i+1]+1, row[i]+1, substitution)
		}
		above, row = row, above
	}
	return above[len(a)]
}
