package score

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gradekeep/gradekeep/pkg/assignments"
	"github.com/gradekeep/gradekeep/pkg/errors"
)

// Pair is a before/after export pair for one assignment.
type Pair struct {
	Key        string
	Assignment string
	BeforePath string
	AfterPath  string
}

// PairDirectories matches the CSV files of the deadline directory
// against the lifted directory by normalized assignment stem. Finding
// no pairs at all is an error.
func PairDirectories(deadlineDir, liftedDir string) ([]Pair, error) {
	deadline, err := csvByKey(deadlineDir)
	if err != nil {
		return nil, err
	}
	lifted, err := csvByKey(liftedDir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(deadline))
	for key := range deadline {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []Pair
	for _, key := range keys {
		after, ok := lifted[key]
		if !ok {
			continue
		}
		before := deadline[key]
		pairs = append(pairs, Pair{
			Key:        key,
			Assignment: assignmentName(before),
			BeforePath: before,
			AfterPath:  after,
		})
	}
	if len(pairs) == 0 {
		return nil, errors.ErrNoFilePairs
	}
	return pairs, nil
}

func csvByKey(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files[assignments.PairKey(e.Name())] = filepath.Join(dir, e.Name())
	}
	return files, nil
}

// assignmentName derives the short assignment name from a filename,
// falling back to the bare stem when no grammar matches.
func assignmentName(path string) string {
	name := filepath.Base(path)
	if _, short, ok := assignments.ParseFilename(name); ok {
		return short
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Export date cells come in a few shapes, always wall-clock with an
// " EST" suffix already stripped by the caller.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006",
}

func parseDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(cell, " EST", ""))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// daysLate is the gap between due date and score date in days,
// rounded to a tenth. Unparseable dates yield zero.
func daysLate(dueDate, scoreDate string) float64 {
	due, ok := parseDate(dueDate)
	if !ok {
		return 0
	}
	scored, ok := parseDate(scoreDate)
	if !ok {
		return 0
	}
	days := scored.Sub(due).Hours() / 24
	return math.Round(days*10) / 10
}
