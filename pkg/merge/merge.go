// Package merge transfers assignment scores from source gradebook
// exports into per-section destination gradebooks, matching students
// by ID first and username second.
package merge

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/gradekeep/gradekeep/pkg/assignments"
	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/identity"
	"github.com/gradekeep/gradekeep/pkg/logging"
	"github.com/gradekeep/gradekeep/pkg/match"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// MatchMethod records how a source row was matched to a section row.
type MatchMethod string

// Match methods, in priority order.
const (
	MatchByID       MatchMethod = "ID"
	MatchByUsername MatchMethod = "Username"
)

// IDMismatch flags a student matched by username whose recorded ID
// disagrees between source and section. The row still merges; the
// mismatch is reported for manual review.
type IDMismatch struct {
	StudentName string
	Email       string
	SourceID    string
	SectionID   string
	Section     string
}

// SectionStats summarizes what one merge run did to one section.
type SectionStats struct {
	GradesUpdated  int
	ColumnsAdded   int
	MatchedByID    int
	MatchedByEmail int
}

// Result is the outcome of a merge run. It holds no file handles;
// writing outputs is the caller's concern.
type Result struct {
	Sections   []*tables.Table
	Stats      map[string]SectionStats
	Mismatches []IDMismatch
	Orphans    []*tables.Table
}

// Merger merges source exports into section gradebooks.
type Merger struct {
	logger *zerolog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for per-row diagnostics.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{logger: logging.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// section wraps a destination table with its row indexes.
type section struct {
	table  *tables.Table
	idCol  string
	byID   map[string]int
	byUser map[string]int
	stats  SectionStats
}

func (m *Merger) indexSection(t *tables.Table) *section {
	s := &section{
		table:  t,
		byID:   make(map[string]int),
		byUser: make(map[string]int),
	}
	idCol, hasID := identity.FindIDColumn(t.Columns)
	s.idCol = idCol

	userCol, hasUser := identity.FindUsernameColumn(t.Columns)
	emailCol, hasEmail := identity.FindEmailColumn(t.Columns)

	for i := 0; i < t.NumRows(); i++ {
		if hasID {
			if id := identity.NormalizeID(t.Get(i, idCol)); id != "" {
				if _, seen := s.byID[id]; !seen {
					s.byID[id] = i
				}
			}
		}
		user := ""
		if hasUser {
			user = strings.ToLower(strings.TrimSpace(t.Get(i, userCol)))
		}
		if user == "" && hasEmail {
			user = identity.UsernameFromEmail(t.Get(i, emailCol))
		}
		if user != "" {
			if _, seen := s.byUser[user]; !seen {
				s.byUser[user] = i
			}
		}
	}
	return s
}

// source wraps an input export with its identity columns resolved.
type source struct {
	table    *tables.Table
	idCol    string
	hasID    bool
	userCol  string
	hasUser  bool
	emailCol string
	hasEmail bool
	scoreCol string
}

func resolveSource(t *tables.Table) *source {
	s := &source{table: t}
	s.idCol, s.hasID = identity.FindIDColumn(t.Columns)
	s.userCol, s.hasUser = identity.FindUsernameColumn(t.Columns)
	s.emailCol, s.hasEmail = identity.FindEmailColumn(t.Columns)
	return s
}

// key returns the source row's match identifiers.
func (s *source) key(row int) (id, user, email string) {
	if s.hasID {
		id = identity.NormalizeID(s.table.Get(row, s.idCol))
	}
	if s.hasUser {
		user = strings.ToLower(strings.TrimSpace(s.table.Get(row, s.userCol)))
	}
	if s.hasEmail {
		email = strings.TrimSpace(s.table.Get(row, s.emailCol))
		if user == "" {
			user = identity.UsernameFromEmail(email)
		}
	}
	return id, user, email
}

// displayName builds "Last, First" from whatever name columns exist.
func displayName(t *tables.Table, row int) string {
	var last, first string
	for _, col := range t.Columns {
		folded := match.Normalize(col)
		switch {
		case last == "" && strings.Contains(folded, "last") && strings.Contains(folded, "name"):
			last = t.Get(row, col)
		case first == "" && strings.Contains(folded, "first") && strings.Contains(folded, "name"):
			first = t.Get(row, col)
		}
	}
	if last == "" && first == "" {
		return ""
	}
	return last + ", " + first
}

// MergeMaster merges one master gradebook into the given sections.
func (m *Merger) MergeMaster(sections []*tables.Table, master *tables.Table) (*Result, error) {
	return m.run(sections, []*tables.Table{master}, nil)
}

// MergeAssignments merges per-assignment exports into the given
// sections. Each source carries exactly one score column, named from
// its filename; the name override maps source table name to target
// column name. Sources must have an ID column.
func (m *Merger) MergeAssignments(sections []*tables.Table, srcs []*tables.Table, columnNames map[string]string) (*Result, error) {
	for _, src := range srcs {
		if _, ok := identity.FindIDColumn(src.Columns); !ok {
			return nil, errors.NewColumnError(src.Name, "id", "")
		}
	}
	return m.run(sections, srcs, columnNames)
}

func (m *Merger) run(sectionTables []*tables.Table, srcs []*tables.Table, columnNames map[string]string) (*Result, error) {
	if len(sectionTables) == 0 {
		return nil, errors.NewValidationError("sections", 0, "at least one section gradebook is required")
	}

	sections := make([]*section, len(sectionTables))
	for i, t := range sectionTables {
		sections[i] = m.indexSection(t.Clone())
	}

	result := &Result{Stats: make(map[string]SectionStats)}

	for _, srcTable := range srcs {
		src := resolveSource(srcTable)
		if !src.hasID && !src.hasUser && !src.hasEmail {
			return nil, errors.NewColumnError(srcTable.Name, "identifying", "")
		}
		if _, ok := columnNames[srcTable.Name]; ok {
			src.scoreCol = findScoreColumn(srcTable.Columns)
			if src.scoreCol == "" {
				m.logger.Warn().
					Str("source", srcTable.Name).
					Msg("no percent score column, skipping")
				continue
			}
		}

		matched := make([]bool, srcTable.NumRows())
		for _, sec := range sections {
			m.mergeInto(sec, src, columnNames, matched, result)
		}
		// Orphans are global: a row is unmatched only when no
		// section claimed it.
		orphans := tables.New(srcTable.Name, srcTable.Columns)
		for i := 0; i < srcTable.NumRows(); i++ {
			if !matched[i] {
				orphans.AppendRow(srcTable.Row(i))
			}
		}
		if orphans.NumRows() > 0 {
			result.Orphans = append(result.Orphans, orphans)
		}
	}

	for _, sec := range sections {
		sorted, err := sec.table.ReorderColumns(assignments.SortColumns(sec.table.Columns))
		if err != nil {
			return nil, err
		}
		result.Sections = append(result.Sections, sorted)
		result.Stats[sec.table.Name] = sec.stats
	}
	return result, nil
}

func (m *Merger) mergeInto(sec *section, src *source, columnNames map[string]string, matched []bool, result *Result) {
	logger := m.logger.With().
		Str("section", sec.table.Name).
		Str("source", src.table.Name).
		Logger()

	for row := 0; row < src.table.NumRows(); row++ {
		id, user, email := src.key(row)
		target, method, ok := sec.match(id, user)
		if !ok {
			continue
		}
		matched[row] = true

		switch method {
		case MatchByID:
			sec.stats.MatchedByID++
		case MatchByUsername:
			sec.stats.MatchedByEmail++
			// A username match with a disagreeing source ID still
			// merges, but the disagreement is reported.
			if id != "" && sec.idCol != "" {
				sectionID := identity.NormalizeID(sec.table.Get(target, sec.idCol))
				if sectionID != "" && sectionID != id {
					result.Mismatches = append(result.Mismatches, IDMismatch{
						StudentName: displayName(src.table, row),
						Email:       email,
						SourceID:    id,
						SectionID:   sectionID,
						Section:     sec.table.Name,
					})
					logger.Warn().
						Str("source_id", id).
						Str("section_id", sectionID).
						Str("user", user).
						Msg("student ID mismatch")
				}
			}
		}

		m.transfer(sec, src, row, target, columnNames)
	}
}

// match applies the ID-then-username priority. ID matching is
// authoritative; username is the fallback for rows the ID cannot place.
func (s *section) match(id, user string) (row int, method MatchMethod, ok bool) {
	if id != "" {
		if row, ok := s.byID[id]; ok {
			return row, MatchByID, true
		}
	}
	if user != "" {
		if row, ok := s.byUser[user]; ok {
			return row, MatchByUsername, true
		}
	}
	return 0, "", false
}

func (m *Merger) transfer(sec *section, src *source, srcRow, dstRow int, columnNames map[string]string) {
	for _, col := range src.table.Columns {
		if col == src.idCol || col == src.userCol || col == src.emailCol {
			continue
		}
		value := src.table.Get(srcRow, col)
		if value == "" {
			continue
		}

		name := col
		if override, ok := columnNames[src.table.Name]; ok {
			// Per-assignment sources carry exactly one grade column,
			// named after the file rather than its in-file header.
			if col != src.scoreCol {
				continue
			}
			name = override
		} else if !assignments.IsGradeable(col) {
			continue
		}

		name = assignments.Translate(assignments.Clean(name))
		target, found := match.FindColumn(name, sec.table.Columns)
		if !found {
			sec.table.AddColumn(name, "")
			sec.stats.ColumnsAdded++
			target = name
		}
		if err := sec.table.Set(dstRow, target, value); err == nil {
			sec.stats.GradesUpdated++
		}
	}
}

// findScoreColumn picks the grade column of a per-assignment export:
// the first column whose name contains "percent score".
func findScoreColumn(columns []string) string {
	for _, col := range columns {
		if strings.Contains(match.Normalize(col), "percent score") {
			return col
		}
	}
	return ""
}
