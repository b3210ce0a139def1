// Package activity processes activity report exports and merges each
// student's best score into lecture section gradebooks, either as one
// aggregated best-of-N column or as one column per report.
package activity

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gradekeep/gradekeep/pkg/assignments"
	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/identity"
	"github.com/gradekeep/gradekeep/pkg/logging"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// expectedColumns are required in every activity report export.
var expectedColumns = []string{
	"First name", "Last name", "Email", "Class section",
	"Date of submission", "Score", "Max score", "Autograded test results",
}

// Best is one student's best submission in a report.
type Best struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Score     float64
	MaxScore  float64
	Percent   float64
}

// ParseReport validates a report table and reduces it to the best
// submission per student. Percent is Score/MaxScore, rounded to two
// decimals.
func ParseReport(t *tables.Table) ([]Best, error) {
	var missing []string
	for _, col := range expectedColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewColumnError(t.Name, "expected", strings.Join(missing, ", "))
	}

	bestByEmail := make(map[string]Best)
	var order []string
	for i := 0; i < t.NumRows(); i++ {
		email := strings.TrimSpace(t.Get(i, "Email"))
		if email == "" {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(t.Get(i, "Score")), 64)
		if err != nil {
			continue
		}
		maxScore, err := strconv.ParseFloat(strings.TrimSpace(t.Get(i, "Max score")), 64)
		if err != nil || maxScore == 0 {
			continue
		}

		b := Best{
			Username:  identity.UsernameFromEmail(email),
			FirstName: t.Get(i, "First name"),
			LastName:  t.Get(i, "Last name"),
			Email:     email,
			Score:     score,
			MaxScore:  maxScore,
			Percent:   math.Round(score/maxScore*100*100) / 100,
		}
		prev, seen := bestByEmail[email]
		if !seen {
			order = append(order, email)
		}
		if !seen || b.Score > prev.Score {
			bestByEmail[email] = b
		}
	}

	out := make([]Best, 0, len(order))
	for _, email := range order {
		out = append(out, bestByEmail[email])
	}
	return out, nil
}

// Runner merges activity reports into gradebooks.
type Runner struct {
	logger *zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
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

// Run dispatches between the aggregated and per-column modes: one
// column name with several reports aggregates, otherwise each report
// needs its own name.
func (r *Runner) Run(reportPaths, lecturePaths, columnNames []string, outDir string) error {
	aggregate := len(columnNames) == 1 && len(reportPaths) > 1
	if !aggregate && len(reportPaths) != len(columnNames) {
		return errors.NewValidationError("names", len(columnNames),
			fmt.Sprintf("%d reports need %d column names, or one name to aggregate",
				len(reportPaths), len(reportPaths)))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.WrapIO("create", outDir, err)
	}
	if aggregate {
		return r.runAggregated(reportPaths, lecturePaths, columnNames[0], outDir)
	}
	return r.runPerColumn(reportPaths, lecturePaths, columnNames, outDir)
}

type studentTotals struct {
	maxPercent float64
	count      int
}

func (r *Runner) runAggregated(reportPaths, lecturePaths []string, column, outDir string) error {
	combined := make(map[string]*studentTotals)
	for _, path := range reportPaths {
		best, err := r.loadReport(path)
		if err != nil {
			return err
		}
		for _, b := range best {
			if b.Username == "" {
				continue
			}
			totals, ok := combined[b.Username]
			if !ok {
				combined[b.Username] = &studentTotals{maxPercent: b.Percent, count: 1}
				continue
			}
			totals.maxPercent = math.Max(totals.maxPercent, b.Percent)
			totals.count++
		}
	}
	r.logger.Info().
		Int("students", len(combined)).
		Int("reports", len(reportPaths)).
		Msg("aggregated activity reports")

	countColumn := column + " Submitted"
	for _, path := range lecturePaths {
		gradebook, err := tables.Load(path, tables.WithTrailerRepair())
		if err != nil {
			return err
		}

		updated := 0
		gradebook.AddColumn(column, "")
		gradebook.AddColumn(countColumn, "")
		err = forEachUsername(gradebook, func(row int, username string) error {
			totals, ok := combined[username]
			if !ok {
				return nil
			}
			if err := gradebook.Set(row, column, formatPercent(totals.maxPercent)); err != nil {
				return err
			}
			count := fmt.Sprintf("%d/%d", totals.count, len(reportPaths))
			if err := gradebook.Set(row, countColumn, count); err != nil {
				return err
			}
			updated++
			return nil
		})
		if err != nil {
			return err
		}

		if err := r.saveGradebook(gradebook, outDir, updated); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runPerColumn(reportPaths, lecturePaths, columnNames []string, outDir string) error {
	gradebooks := make([]*tables.Table, len(lecturePaths))
	for i, path := range lecturePaths {
		gradebook, err := tables.Load(path, tables.WithTrailerRepair())
		if err != nil {
			return err
		}
		gradebooks[i] = gradebook
	}

	for i, path := range reportPaths {
		best, err := r.loadReport(path)
		if err != nil {
			return err
		}
		scores := make(map[string]float64, len(best))
		for _, b := range best {
			if b.Username != "" {
				scores[b.Username] = b.Percent
			}
		}

		column := columnNames[i]
		for _, gradebook := range gradebooks {
			updated := 0
			gradebook.AddColumn(column, "")
			err := forEachUsername(gradebook, func(row int, username string) error {
				pct, ok := scores[username]
				if !ok {
					return nil
				}
				if err := gradebook.Set(row, column, formatPercent(pct)); err != nil {
					return err
				}
				updated++
				return nil
			})
			if err != nil {
				return err
			}
			r.logger.Debug().
				Str("gradebook", gradebook.Name).
				Str("column", column).
				Int("updated", updated).
				Msg("applied report scores")
		}
	}

	for _, gradebook := range gradebooks {
		if err := r.saveGradebook(gradebook, outDir, -1); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) loadReport(path string) ([]Best, error) {
	t, err := tables.Load(path)
	if err != nil {
		return nil, err
	}
	best, err := ParseReport(t)
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("report", t.Name).
		Int("students", len(best)).
		Msg("parsed activity report")
	return best, nil
}

// forEachUsername resolves each gradebook row to a username, using a
// username column when present and the school email local part
// otherwise, and invokes fn for resolvable rows.
func forEachUsername(t *tables.Table, fn func(row int, username string) error) error {
	userCol, hasUser := identity.FindUsernameColumn(t.Columns)
	emailCol, hasEmail := identity.FindEmailColumn(t.Columns)

	for i := 0; i < t.NumRows(); i++ {
		username := ""
		if hasUser {
			username = strings.ToLower(strings.TrimSpace(t.Get(i, userCol)))
		}
		if username == "" && hasEmail {
			username = identity.UsernameFromEmail(t.Get(i, emailCol))
		}
		if username == "" {
			continue
		}
		if err := fn(i, username); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) saveGradebook(gradebook *tables.Table, outDir string, updated int) error {
	sorted, err := gradebook.ReorderColumns(assignments.SortColumns(gradebook.Columns))
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(gradebook.Name, ".csv") + "_merged.csv"
	path := filepath.Join(outDir, name)
	if err := sorted.Save(path); err != nil {
		return err
	}
	event := r.logger.Info().Str("path", path)
	if updated >= 0 {
		event = event.Int("updated", updated)
	}
	event.Msg("gradebook written")
	return nil
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
