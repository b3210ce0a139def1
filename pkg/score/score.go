// Package score recovers scores for students who submitted after a
// deadline was lifted: it pairs "before" and "after" exports of the
// same assignments, transfers recovered scores, applies late-penalty
// rules, and accumulates audit and true-zero reports.
package score

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/identity"
	"github.com/gradekeep/gradekeep/pkg/logging"
	"github.com/gradekeep/gradekeep/pkg/match"
	"github.com/gradekeep/gradekeep/pkg/penalty"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// AuditRecord is one recovered late submission.
type AuditRecord struct {
	Assignment      string
	LastName        string
	FirstName       string
	StudentID       string
	MatchMethod     string
	BeforeScore     string
	AfterScore      string
	BeforeScoreDate string
	AfterScoreDate  string
	DueDate         string

	// Filled in during consolidation
	DaysLate     float64
	AppliedScore float64
	Adjustment   penalty.Outcome
}

// TrueZeroRecord is a student who never submitted, deadline lift or not.
type TrueZeroRecord struct {
	Assignment  string
	LastName    string
	FirstName   string
	StudentID   string
	DueDate     string
	ScoreDate   string
	SchoolEmail string
}

// PairResult is the outcome of processing one assignment pair.
type PairResult struct {
	Assignment string
	Merged     *tables.Table
	Audit      []AuditRecord
	TrueZeros  []TrueZeroRecord
}

// Runner processes deadline-lift batches.
type Runner struct {
	logger *zerolog.Logger
	rules  []penalty.Rule
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for progress and diagnostics.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRules supplies late-penalty rules to apply during consolidation.
func WithRules(rules []penalty.Rule) Option {
	return func(r *Runner) {
		r.rules = rules
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: logging.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// findSubstringColumn locates the first column whose folded name
// contains the phrase.
func findSubstringColumn(t *tables.Table, phrase string) (string, bool) {
	for _, col := range t.Columns {
		if strings.Contains(match.Normalize(col), phrase) {
			return col, true
		}
	}
	return "", false
}

// ProcessPair merges one before/after export pair. Only rows whose
// before score is zero are considered: a zero after score is a true
// zero, a non-zero one is a recovered late submission.
func (r *Runner) ProcessPair(p Pair) (*PairResult, error) {
	before, err := tables.Load(p.BeforePath, tables.WithTrailerRepair())
	if err != nil {
		return nil, err
	}
	after, err := tables.Load(p.AfterPath, tables.WithTrailerRepair())
	if err != nil {
		return nil, err
	}

	beforeID, ok := identity.FindIDColumn(before.Columns)
	if !ok {
		return nil, errors.NewColumnError(before.Name, "id", "")
	}
	afterID, ok := identity.FindIDColumn(after.Columns)
	if !ok {
		return nil, errors.NewColumnError(after.Name, "id", "")
	}
	scoreCol, ok := findSubstringColumn(before, "percent score")
	if !ok {
		return nil, errors.NewColumnError(before.Name, "percent score", "")
	}

	beforeEmail, _ := identity.FindEmailColumn(before.Columns)
	afterEmail, _ := identity.FindEmailColumn(after.Columns)
	dueDateCol, _ := findSubstringColumn(before, "due date")
	scoreDateCol, _ := findSubstringColumn(before, "score date")

	byID := make(map[string]int)
	byUser := make(map[string]int)
	for i := 0; i < after.NumRows(); i++ {
		if id := identity.NormalizeID(after.Get(i, afterID)); id != "" {
			byID[id] = i
		}
		if afterEmail != "" {
			if user := identity.UsernameFromEmail(after.Get(i, afterEmail)); user != "" {
				byUser[user] = i
			}
		}
	}

	result := &PairResult{Assignment: p.Assignment, Merged: before.Clone()}
	logger := r.logger.With().Str("assignment", p.Assignment).Logger()

	for i := 0; i < before.NumRows(); i++ {
		if !isZeroScore(before.Get(i, scoreCol)) {
			continue
		}

		id := identity.NormalizeID(before.Get(i, beforeID))
		user := ""
		if beforeEmail != "" {
			user = identity.UsernameFromEmail(before.Get(i, beforeEmail))
		}

		afterRow, method := -1, ""
		if id != "" {
			if row, ok := byID[id]; ok {
				afterRow, method = row, "ID"
			}
		}
		if afterRow < 0 && user != "" {
			if row, ok := byUser[user]; ok {
				afterRow, method = row, "username"
			}
		}
		if afterRow < 0 {
			continue
		}

		lastName, firstName := nameOf(before, i)
		afterScore := after.Get(afterRow, scoreCol)

		if isZeroScore(afterScore) {
			result.TrueZeros = append(result.TrueZeros, TrueZeroRecord{
				Assignment:  p.Assignment,
				LastName:    lastName,
				FirstName:   firstName,
				StudentID:   id,
				DueDate:     get(before, i, dueDateCol),
				ScoreDate:   get(before, i, scoreDateCol),
				SchoolEmail: get(before, i, beforeEmail),
			})
			continue
		}

		rec := AuditRecord{
			Assignment:      p.Assignment,
			LastName:        lastName,
			FirstName:       firstName,
			StudentID:       id,
			MatchMethod:     method,
			BeforeScore:     "0",
			AfterScore:      afterScore,
			BeforeScoreDate: get(before, i, scoreDateCol),
			AfterScoreDate:  get(after, afterRow, scoreDateCol),
			DueDate:         get(before, i, dueDateCol),
		}
		if err := result.Merged.Set(i, scoreCol, afterScore); err != nil {
			return nil, err
		}
		if scoreDateCol != "" && rec.AfterScoreDate != "" {
			if err := result.Merged.Set(i, scoreDateCol, rec.AfterScoreDate); err != nil {
				return nil, err
			}
		}
		result.Audit = append(result.Audit, rec)

		logger.Debug().
			Str("student_id", id).
			Str("method", method).
			Str("after_score", afterScore).
			Msg("recovered late submission")
	}

	logger.Info().
		Int("updates", len(result.Audit)).
		Int("true_zeros", len(result.TrueZeros)).
		Msg("pair processed")
	return result, nil
}

func get(t *tables.Table, row int, col string) string {
	if col == "" {
		return ""
	}
	return t.Get(row, col)
}

// isZeroScore reports whether a score cell reads as numeric zero.
// Blank and non-numeric cells do not count.
func isZeroScore(cell string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	return err == nil && f == 0
}

func nameOf(t *tables.Table, row int) (last, first string) {
	for _, col := range t.Columns {
		folded := match.Normalize(col)
		if !strings.Contains(folded, "name") {
			continue
		}
		switch {
		case last == "" && strings.Contains(folded, "last"):
			last = t.Get(row, col)
		case first == "" && strings.Contains(folded, "first"):
			first = t.Get(row, col)
		}
	}
	return last, first
}

// Consolidate computes days late and applied scores for accumulated
// audit records. Days late come from the after score date versus the
// due date, rounded to a tenth of a day; unparseable dates count as
// zero days late.
func (r *Runner) Consolidate(records []AuditRecord) []AuditRecord {
	out := make([]AuditRecord, len(records))
	for i, rec := range records {
		rec.DaysLate = daysLate(rec.DueDate, rec.AfterScoreDate)

		score, _ := strconv.ParseFloat(strings.TrimSpace(rec.AfterScore), 64)
		week, assn := splitAssignment(rec.Assignment)
		rec.AppliedScore, rec.Adjustment = penalty.Evaluate(penalty.Record{
			Week:       week,
			Student:    strings.TrimSpace(rec.FirstName + " " + rec.LastName),
			Assignment: assn,
			Score:      score,
			DaysLate:   rec.DaysLate,
		}, r.rules)
		out[i] = rec
	}
	return out
}

// splitAssignment breaks "W3 PA" into week and category. Names that
// do not fit the short form yield a zero week, which no rule covers.
func splitAssignment(name string) (week int, assn string) {
	fields := strings.Fields(name)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "W") {
		return 0, ""
	}
	week, err := strconv.Atoi(strings.TrimPrefix(fields[0], "W"))
	if err != nil {
		return 0, ""
	}
	return week, fields[1]
}
