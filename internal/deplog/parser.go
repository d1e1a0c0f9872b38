// Package deplog parses ABAP BW dependency log exports and derives the
// use case / provider / function module cross-references from them.
package deplog

import (
	"sort"
	"strings"
)

// Dependency logs are semicolon-separated with seven logical columns:
//
//	ranid;Container;Kind;Name;Where;Line;Note
//
// Only Kind, Name and Where are consulted. Splitting is strictly on ";" with
// no quote handling, matching the raw ABAP export format.
const (
	colKind  = 2
	colName  = 3
	colWhere = 4
)

// ParseLog extracts function module names from one dependency log. A row
// qualifies when Kind equals "FM" and Where contains "CALL FUNCTION", both
// case-insensitive. The result is sorted and deduplicated.
//
// The first row is discarded only when it is an actual header (its Kind
// column reads "KIND"); otherwise it is evaluated as data like any other row.
// Rows with fewer than five columns are skipped.
func ParseLog(text string) []string {
	seen := make(map[string]struct{})

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	for i, line := range strings.Split(text, "\n") {
		fields := strings.Split(line, ";")
		if len(fields) < 5 {
			continue
		}

		kind := strings.ToUpper(strings.TrimSpace(fields[colKind]))
		if i == 0 && kind == "KIND" {
			continue
		}

		where := strings.ToUpper(strings.TrimSpace(fields[colWhere]))
		if kind == "FM" && strings.Contains(where, "CALL FUNCTION") {
			seen[strings.TrimSpace(fields[colName])] = struct{}{}
		}
	}

	fms := make([]string, 0, len(seen))
	for fm := range seen {
		fms = append(fms, fm)
	}
	sort.Strings(fms)
	return fms
}
