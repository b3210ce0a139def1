package score

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/identity"
	"github.com/gradekeep/gradekeep/pkg/match"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// Summary reports what a batch run produced.
type Summary struct {
	Assignments     []string
	LateSubmissions int
	TrueZeros       int
	Outputs         []string
}

var auditColumns = []string{
	"Assignment", "Last Name", "First Name", "Student ID", "Match Method",
	"Before Score", "After Score", "Before Score Date", "After Score Date",
	"Due Date", "Days Late", "Applied Score",
	"Adjustment Matched", "Adjustment Rule", "Frac Deduction",
}

var trueZeroColumns = []string{
	"Assignment", "Last Name", "First Name", "Student ID",
	"Due Date", "Score Date", "School Email",
}

// Columns of the upload extract, in upload order.
var extractColumns = []string{
	"Last name", "First name", "Primary email", "School email",
	"Student ID", "Percent score",
}

// Run processes every assignment pair between the two directories and
// writes merged files, consolidated reports, and upload extracts into
// outDir. A failing pair is logged and skipped; the batch continues.
func (r *Runner) Run(deadlineDir, liftedDir, outDir string) (*Summary, error) {
	pairs, err := PairDirectories(deadlineDir, liftedDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.WrapIO("create", outDir, err)
	}

	summary := &Summary{}
	var audits []AuditRecord
	var trueZeros []TrueZeroRecord
	merged := make(map[string]*tables.Table)

	for _, pair := range pairs {
		result, err := r.ProcessPair(pair)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("assignment", pair.Assignment).
				Msg("skipping assignment pair")
			continue
		}

		path := filepath.Join(outDir, result.Assignment+"_merged.csv")
		if err := result.Merged.Save(path); err != nil {
			return nil, err
		}
		summary.Outputs = append(summary.Outputs, path)
		summary.Assignments = append(summary.Assignments, result.Assignment)
		merged[result.Assignment] = result.Merged
		audits = append(audits, result.Audit...)
		trueZeros = append(trueZeros, result.TrueZeros...)
	}

	audits = r.Consolidate(audits)
	summary.LateSubmissions = len(audits)
	summary.TrueZeros = len(trueZeros)

	if len(audits) > 0 {
		path := filepath.Join(outDir, "all_late_submissions.csv")
		if err := auditTable(audits).Save(path); err != nil {
			return nil, err
		}
		summary.Outputs = append(summary.Outputs, path)
	}

	for _, assignment := range summary.Assignments {
		outputs, err := r.writeExtracts(outDir, assignment, merged[assignment], audits)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("assignment", assignment).
				Msg("skipping upload extract")
			continue
		}
		summary.Outputs = append(summary.Outputs, outputs...)
	}

	if len(trueZeros) > 0 {
		path := filepath.Join(outDir, "all_true_zeros.csv")
		if err := trueZeroTable(trueZeros).Save(path); err != nil {
			return nil, err
		}
		summary.Outputs = append(summary.Outputs, path)
	}

	r.logger.Info().
		Int("assignments", len(summary.Assignments)).
		Int("late_submissions", summary.LateSubmissions).
		Int("true_zeros", summary.TrueZeros).
		Msg("batch complete")
	return summary, nil
}

func auditTable(records []AuditRecord) *tables.Table {
	t := tables.New("all_late_submissions.csv", auditColumns)
	for _, rec := range records {
		rule := rec.Adjustment.Rule
		if !rec.Adjustment.Matched {
			rule = ""
		}
		t.AppendRow([]string{
			rec.Assignment, rec.LastName, rec.FirstName, rec.StudentID,
			rec.MatchMethod, rec.BeforeScore, rec.AfterScore,
			rec.BeforeScoreDate, rec.AfterScoreDate, rec.DueDate,
			fmt.Sprintf("%.1f", rec.DaysLate),
			strconv.FormatFloat(rec.AppliedScore, 'f', -1, 64),
			strconv.FormatBool(rec.Adjustment.Matched),
			rule,
			strconv.FormatFloat(rec.Adjustment.FracDeduction, 'f', -1, 64),
		})
	}
	return t
}

func trueZeroTable(records []TrueZeroRecord) *tables.Table {
	t := tables.New("all_true_zeros.csv", trueZeroColumns)
	for _, rec := range records {
		t.AppendRow([]string{
			rec.Assignment, rec.LastName, rec.FirstName, rec.StudentID,
			rec.DueDate, rec.ScoreDate, rec.SchoolEmail,
		})
	}
	return t
}

// writeExtracts produces the scored gradebook and the upload extract
// for one assignment from its merged table.
func (r *Runner) writeExtracts(outDir, assignment string, mergedTable *tables.Table, audits []AuditRecord) ([]string, error) {
	scored := mergedTable.Clone()

	emailCol, hasEmail := identity.FindEmailColumn(scored.Columns)
	if hasEmail {
		scored.AddColumn("Username", "")
		for i := 0; i < scored.NumRows(); i++ {
			if user := identity.UsernameFromEmail(scored.Get(i, emailCol)); user != "" {
				if err := scored.Set(i, "Username", user); err != nil {
					return nil, err
				}
			}
		}
	}

	idCol, ok := identity.FindIDColumn(scored.Columns)
	if !ok {
		return nil, errors.NewColumnError(scored.Name, "id", "")
	}
	scoreCol, ok := findSubstringColumn(scored, "percent score")
	if !ok {
		return nil, errors.NewColumnError(scored.Name, "percent score", "")
	}

	byID := make(map[string]int)
	for i := 0; i < scored.NumRows(); i++ {
		if id := identity.NormalizeID(scored.Get(i, idCol)); id != "" {
			byID[id] = i
		}
	}

	var outputs []string
	applied := 0
	for _, rec := range audits {
		if rec.Assignment != assignment {
			continue
		}
		row, ok := byID[rec.StudentID]
		if !ok {
			continue
		}
		value := strconv.FormatFloat(rec.AppliedScore, 'f', -1, 64)
		if err := scored.Set(row, scoreCol, value); err != nil {
			return nil, err
		}
		applied++
	}
	if applied > 0 {
		path := filepath.Join(outDir, assignment+"_scored.csv")
		if err := scored.Save(path); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}

	// The upload extract needs the canonical column set; resolve each
	// by fold so header variations still extract.
	resolved := make([]string, len(extractColumns))
	for i, want := range extractColumns {
		col, ok := findExactColumn(scored, want)
		if !ok {
			return outputs, errors.NewColumnError(scored.Name, "extract", want)
		}
		resolved[i] = col
	}
	selected, err := scored.Select(resolved...)
	if err != nil {
		return outputs, err
	}
	extract := tables.New(assignment+"_bblearn.csv", extractColumns)
	extract.Rows = selected.Rows

	path := filepath.Join(outDir, assignment+"_bblearn.csv")
	if err := extract.Save(path); err != nil {
		return outputs, err
	}
	return append(outputs, path), nil
}

func findExactColumn(t *tables.Table, name string) (string, bool) {
	want := match.Normalize(name)
	for _, col := range t.Columns {
		if match.Normalize(col) == want {
			return col, true
		}
	}
	return "", false
}
