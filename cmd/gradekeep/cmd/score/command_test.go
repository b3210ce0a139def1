package score

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/cmd/application"
)

const exportHeader = "Last name,First name,Primary email,School email,Student ID,Percent score,Due date,Score date\n"

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCommandScore(t *testing.T) {
	dir := t.TempDir()
	deadlineDir := filepath.Join(dir, "deadline")
	liftedDir := filepath.Join(dir, "lifted")
	outDir := filepath.Join(dir, "merged")
	require.NoError(t, os.Mkdir(deadlineDir, 0o755))
	require.NoError(t, os.Mkdir(liftedDir, 0o755))

	writeFile(t, deadlineDir, "Week_1_Participation_Activities_bblearn.csv",
		exportHeader+"Doe,Jane,jd@mail.com,jdoe@school.edu,1234567,0,2026-01-10 23:59:00 EST,\n")
	writeFile(t, liftedDir, "Week_1_Participation_Activities_bblearn.csv",
		exportHeader+"Doe,Jane,jd@mail.com,jdoe@school.edu,1234567,85,2026-01-10 23:59:00 EST,2026-01-12 11:59:00 EST\n")

	cmd := NewCommand(&application.Mock{})
	cmd.SetArgs([]string{
		"--deadline", deadlineDir,
		"--lifted", liftedDir,
		"--output-dir", outDir,
	})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, filepath.Join(outDir, "W1 PA_merged.csv"))
	assert.FileExists(t, filepath.Join(outDir, "W1 PA_bblearn.csv"))

	late, err := os.ReadFile(filepath.Join(outDir, "all_late_submissions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(late), "1234567")
}

func TestCommandScoreWithAdjustments(t *testing.T) {
	dir := t.TempDir()
	deadlineDir := filepath.Join(dir, "deadline")
	liftedDir := filepath.Join(dir, "lifted")
	require.NoError(t, os.Mkdir(deadlineDir, 0o755))
	require.NoError(t, os.Mkdir(liftedDir, 0o755))

	// An unreadable rules file is fatal before any pairing happens.
	cmd := NewCommand(&application.Mock{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{
		"--deadline", deadlineDir,
		"--lifted", liftedDir,
		"--adjustments", filepath.Join(dir, "missing.yaml"),
	})
	require.Error(t, cmd.Execute())
}
