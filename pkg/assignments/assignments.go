// Package assignments classifies gradebook column headers and
// assignment filenames, and orders assignment columns for output.
package assignments

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind is the short code for an assignment category.
type Kind string

// Assignment categories in their canonical output order.
const (
	ParticipationActivities Kind = "PA"
	ChallengeActivities     Kind = "CA"
	InLabLabs               Kind = "IL"
	OutOfLabLabs            Kind = "OL"
)

var kindRank = map[Kind]int{
	ParticipationActivities: 0,
	ChallengeActivities:     1,
	InLabLabs:               2,
	OutOfLabLabs:            3,
}

// Tag identifies an assignment column as week + category.
type Tag struct {
	Week int
	Kind Kind
}

// String renders the short column form, e.g. "W3 PA".
func (t Tag) String() string {
	return fmt.Sprintf("W%d %s", t.Week, t.Kind)
}

var (
	longForm  = regexp.MustCompile(`(?i)^Week\s+\d+\s+`)
	shortForm = regexp.MustCompile(`(?i)^W\d+\s+(PA|IL|CA|OL)`)

	translateForm = regexp.MustCompile(`(?i)^Week\s+(\d+)\s+(.+?)(?:\s*\([\d.]+\))?$`)

	zybooksFile = regexp.MustCompile(`(?i)Week[_\s]+(\d+)[_\s]+(Participation|Challenge|In-Lab|Out-of-Lab)[_\s]+(Activities|Labs)`)
	shortFile   = regexp.MustCompile(`(?i)(W\d+)[_\s]+(PA|CA|IL|OL)`)

	tagForm = regexp.MustCompile(`(?i)^W(\d+)\s+([A-Za-z]+)\b`)
)

// Category phrases as they appear in long-form exports.
var phraseKinds = map[string]Kind{
	"participation activities": ParticipationActivities,
	"challenge activities":     ChallengeActivities,
	"in-lab labs":              InLabLabs,
	"out-of-lab labs":          OutOfLabLabs,
}

// IsGradeable reports whether a header names an assignment column, in
// either the long ("Week 3 ...") or short ("W3 PA ...") form.
func IsGradeable(header string) bool {
	h := strings.TrimSpace(header)
	return longForm.MatchString(h) || shortForm.MatchString(h)
}

// Translate converts a long-form header to the short form, e.g.
// "Week 3 Participation Activities (10)" -> "W3 PA". Headers that
// do not fit the long form, or whose category phrase is unknown,
// pass through unchanged.
func Translate(header string) string {
	m := translateForm.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return header
	}
	kind, ok := phraseKinds[strings.ToLower(strings.TrimSpace(m[2]))]
	if !ok {
		return header
	}
	week, _ := strconv.Atoi(m[1])
	return Tag{Week: week, Kind: kind}.String()
}

// Clean strips bracketed metadata from a header: everything from the
// first '[' is cut and trailing whitespace removed.
func Clean(header string) string {
	if i := strings.Index(header, "["); i >= 0 {
		header = header[:i]
	}
	return strings.TrimRight(header, " \t")
}

// ParseFilename derives column names from an assignment export
// filename. The long zyBooks grammar yields both the full and short
// names; the short grammar yields the short name twice. ok is false
// when neither grammar matches.
func ParseFilename(name string) (full, short string, ok bool) {
	if m := zybooksFile.FindStringSubmatch(name); m != nil {
		full = strings.Join(strings.FieldsFunc(m[0], func(r rune) bool {
			return r == '_' || r == ' '
		}), " ")
		short = fmt.Sprintf("W%s %s", m[1], categoryKind(m[2]))
		return full, short, true
	}
	if m := shortFile.FindStringSubmatch(name); m != nil {
		short = fmt.Sprintf("%s %s", strings.ToUpper(m[1]), strings.ToUpper(m[2]))
		return short, short, true
	}
	return "", "", false
}

func categoryKind(phrase string) Kind {
	switch strings.ToLower(phrase) {
	case "participation":
		return ParticipationActivities
	case "challenge":
		return ChallengeActivities
	case "in-lab":
		return InLabLabs
	case "out-of-lab":
		return OutOfLabLabs
	}
	return Kind(strings.ToUpper(phrase))
}

// Strings stripped from filename stems when pairing exports of the
// same assignment across directories.
var pairSuffixes = []string{
	"_before", "_after", "_deadline", "_lifted", "_original", "_extended",
}

var underscoreRuns = regexp.MustCompile(`_+`)

// PairKey normalizes an export filename to the assignment it reports
// on, so "before deadline" and "deadline lifted" exports of the same
// assignment map to the same key.
func PairKey(filename string) string {
	stem := strings.ToLower(filename)
	if i := strings.LastIndex(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	if i := strings.Index(stem, "_report"); i >= 0 {
		stem = stem[:i]
	}
	if i := strings.Index(stem, "week"); i > 0 {
		stem = stem[i:]
	}
	for _, suffix := range pairSuffixes {
		stem = strings.ReplaceAll(stem, suffix, "")
	}
	stem = underscoreRuns.ReplaceAllString(stem, "_")
	return strings.Trim(stem, "_")
}

// parseTag extracts ordering data from a short-form header.
func parseTag(header string) (Tag, bool) {
	m := tagForm.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return Tag{}, false
	}
	week, _ := strconv.Atoi(m[1])
	return Tag{Week: week, Kind: Kind(strings.ToUpper(m[2]))}, true
}

// SortColumns orders a column set for output: non-assignment columns
// keep their relative order up front, assignment columns follow sorted
// by week then category (PA, CA, IL, OL). Pure and idempotent.
func SortColumns(columns []string) []string {
	type tagged struct {
		name string
		tag  Tag
	}

	var fixed []string
	var graded []tagged
	for _, col := range columns {
		if tag, ok := parseTag(col); ok {
			graded = append(graded, tagged{name: col, tag: tag})
			continue
		}
		fixed = append(fixed, col)
	}

	rank := func(k Kind) int {
		if r, ok := kindRank[k]; ok {
			return r
		}
		return 99
	}
	sort.SliceStable(graded, func(i, j int) bool {
		a, b := graded[i], graded[j]
		if a.tag.Week != b.tag.Week {
			return a.tag.Week < b.tag.Week
		}
		return rank(a.tag.Kind) < rank(b.tag.Kind)
	})

	out := make([]string, 0, len(columns))
	out = append(out, fixed...)
	for _, g := range graded {
		out = append(out, g.name)
	}
	return out
}
