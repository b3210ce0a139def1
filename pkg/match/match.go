// Package match reconciles column names across exports that label the
// same data differently ("W3 PA" vs "Week 3 Participation [Total Pts: 10]").
package match

import "strings"

// Normalize folds a header for comparison: bracketed suffixes cut,
// lowercased, '_' and '-' treated as spaces, whitespace collapsed.
func Normalize(name string) string {
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// FindColumn resolves candidate against existing column names. An exact
// normalized match wins; otherwise the first existing column related to
// the candidate by substring containment (either direction) wins. The
// second return is false when nothing relates, which callers treat as
// "create the column".
func FindColumn(candidate string, existing []string) (string, bool) {
	want := Normalize(candidate)
	if want == "" {
		return "", false
	}
	for _, col := range existing {
		if Normalize(col) == want {
			return col, true
		}
	}
	for _, col := range existing {
		have := Normalize(col)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return col, true
		}
	}
	return "", false
}
