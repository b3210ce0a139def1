// Package merge implements the merge subcommand: transferring scores
// from a master gradebook or per-assignment exports into lecture
// section gradebooks.
package merge

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gradekeep/gradekeep/cmd/application"
	"github.com/gradekeep/gradekeep/pkg/assignments"
	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/merge"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// NewCommand creates the merge command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		lectureFiles      []string
		masterFile        string
		assignmentFiles   []string
		assignmentDir     string
		assignmentPattern string
		outputDir         string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Transfer grades into lecture section gradebooks",
		Long: `Merge transfers per-assignment scores into one or more lecture
section gradebooks. Scores come either from a single master gradebook
(--master) or from per-assignment exports (--assignment files or an
--assignment-dir scanned with --assignment-pattern).

Each section gradebook is written next to its input as
<name>_merged.csv, together with orphaned_students.csv (source rows
matched in no section) and failed_id_matches.csv (rows matched by
username whose student IDs disagree) when those reports are non-empty.`,
		Example: `  gradekeep merge --lecture section_A.csv section_B.csv --master master.csv
  gradekeep merge -l section_A.csv --assignment W1_PA.csv W1_CA.csv
  gradekeep merge -l section_A.csv --assignment-dir scored/ -o merged/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(app, options{
				lectureFiles:      lectureFiles,
				masterFile:        masterFile,
				assignmentFiles:   assignmentFiles,
				assignmentDir:     assignmentDir,
				assignmentPattern: assignmentPattern,
				outputDir:         outputDir,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&lectureFiles, "lecture", "l", nil, "lecture section CSV files (required)")
	cmd.Flags().StringVarP(&masterFile, "master", "m", "", "master gradebook CSV file")
	cmd.Flags().StringSliceVarP(&assignmentFiles, "assignment", "a", nil, "per-assignment CSV files")
	cmd.Flags().StringVar(&assignmentDir, "assignment-dir", "", "directory containing per-assignment CSV files")
	cmd.Flags().StringVar(&assignmentPattern, "assignment-pattern", "*_bblearn.csv", "filename pattern for assignment CSVs in --assignment-dir")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "output directory for merged files")
	_ = cmd.MarkFlagRequired("lecture")

	return cmd
}

type options struct {
	lectureFiles      []string
	masterFile        string
	assignmentFiles   []string
	assignmentDir     string
	assignmentPattern string
	outputDir         string
}

func run(app application.Application, opts options) error {
	logger := app.Logger()

	sections := make([]*tables.Table, len(opts.lectureFiles))
	for i, path := range opts.lectureFiles {
		t, err := tables.Load(path, tables.WithTrailerRepair())
		if err != nil {
			return err
		}
		sections[i] = t
	}

	merger := merge.New(merge.WithLogger(logger))

	var result *merge.Result
	switch {
	case opts.masterFile != "":
		master, err := tables.Load(opts.masterFile)
		if err != nil {
			return err
		}
		result, err = merger.MergeMaster(sections, master)
		if err != nil {
			return err
		}
	default:
		srcs, names, err := loadAssignments(app, opts)
		if err != nil {
			return err
		}
		result, err = merger.MergeAssignments(sections, srcs, names)
		if err != nil {
			return err
		}
	}

	return writeOutputs(app, result, opts.outputDir)
}

// loadAssignments resolves and loads the per-assignment source files,
// naming each target column from its filename. Files whose names fit
// no known grammar are skipped with a warning.
func loadAssignments(app application.Application, opts options) ([]*tables.Table, map[string]string, error) {
	files := opts.assignmentFiles
	if len(files) == 0 {
		if opts.assignmentDir == "" {
			return nil, nil, errors.NewValidationError("assignment", nil,
				"provide --master, --assignment, or --assignment-dir")
		}
		matches, err := filepath.Glob(filepath.Join(opts.assignmentDir, opts.assignmentPattern))
		if err != nil {
			return nil, nil, errors.WrapIO("glob", opts.assignmentDir, err)
		}
		if len(matches) == 0 {
			return nil, nil, errors.NewValidationError("assignment-dir", opts.assignmentDir,
				"no assignment files match pattern "+opts.assignmentPattern)
		}
		files = matches
	}

	var srcs []*tables.Table
	names := make(map[string]string)
	for _, path := range files {
		_, short, ok := assignments.ParseFilename(filepath.Base(path))
		if !ok {
			app.Logger().Warn().
				Str("file", filepath.Base(path)).
				Msg("skipping assignment file with unrecognized name")
			continue
		}
		t, err := tables.Load(path, tables.WithTrailerRepair())
		if err != nil {
			return nil, nil, err
		}
		srcs = append(srcs, t)
		names[t.Name] = short
	}
	if len(srcs) == 0 {
		return nil, nil, errors.NewValidationError("assignment", len(files),
			"no assignment files with recognizable names")
	}
	return srcs, names, nil
}

func writeOutputs(app application.Application, result *merge.Result, outDir string) error {
	logger := app.Logger()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.WrapIO("create", outDir, err)
	}

	for _, section := range result.Sections {
		name := strings.TrimSuffix(section.Name, ".csv") + "_merged.csv"
		path := filepath.Join(outDir, name)
		if err := section.Save(path); err != nil {
			return err
		}
		stats := result.Stats[section.Name]
		logger.Info().
			Str("path", path).
			Int("grades_updated", stats.GradesUpdated).
			Int("columns_added", stats.ColumnsAdded).
			Int("matched_by_id", stats.MatchedByID).
			Int("matched_by_email", stats.MatchedByEmail).
			Msg("section gradebook written")
	}

	if len(result.Orphans) > 0 {
		orphans := result.OrphanTable()
		path := filepath.Join(outDir, orphans.Name)
		if err := orphans.Save(path); err != nil {
			return err
		}
		logger.Warn().
			Str("path", path).
			Int("students", orphans.NumRows()).
			Msg("students not found in any lecture section")
	}

	if len(result.Mismatches) > 0 {
		mismatches := result.MismatchTable()
		path := filepath.Join(outDir, mismatches.Name)
		if err := mismatches.Save(path); err != nil {
			return err
		}
		logger.Warn().
			Str("path", path).
			Int("students", len(result.Mismatches)).
			Msg("students matched by username with disagreeing IDs")
	}

	return nil
}
