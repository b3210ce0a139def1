// Package identity resolves student identity across heterogeneous
// gradebook exports. Every export names its students differently; the
// resolvers here locate the identifying columns and normalize their
// values so rows from different files can be matched.
package identity

import (
	"math"
	"strconv"
	"strings"

	"github.com/gradekeep/gradekeep/pkg/match"
)

// Column aliases for the identifying categories. ID headers match by
// containment either direction; email and username headers match by
// exact fold only, because generic "Email" columns are unreliable.
var (
	idAliases = []string{
		"student id", "studentid", "student_id", "sid", "id",
		"student number", "student_number",
	}
	emailAliases    = []string{"school email", "schoolemail", "school_email"}
	usernameAliases = []string{"username", "user name", "user_name"}
)

// FindIDColumn locates the student-ID column among headers.
func FindIDColumn(columns []string) (string, bool) {
	for _, col := range columns {
		folded := match.Normalize(col)
		for _, alias := range idAliases {
			if strings.Contains(folded, alias) || strings.Contains(alias, folded) {
				return col, true
			}
		}
	}
	return "", false
}

// FindEmailColumn locates the school-email column among headers.
func FindEmailColumn(columns []string) (string, bool) {
	return findExact(columns, emailAliases)
}

// FindUsernameColumn locates the username column among headers.
func FindUsernameColumn(columns []string) (string, bool) {
	return findExact(columns, usernameAliases)
}

func findExact(columns, aliases []string) (string, bool) {
	for _, col := range columns {
		folded := match.Normalize(col)
		for _, alias := range aliases {
			if folded == alias {
				return col, true
			}
		}
	}
	return "", false
}

// NormalizeID canonicalizes a student-ID cell. Spreadsheet round trips
// turn IDs into floats ("1234567.0"); integral float renderings are
// collapsed back to their digits. Anything non-numeric passes through
// untouched. Idempotent.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ".") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f != math.Trunc(f) {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// UsernameFromEmail extracts the lowercase local part of an email
// address, or "" when the value is empty or has no '@'.
func UsernameFromEmail(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	at := strings.Index(s, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(s[:at])
}
