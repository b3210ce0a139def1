package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/cmd/application"
)

const sectionCSV = "Last Name,First Name,School Email,Student ID,W1 PA\n" +
	"Doe,Jane,jdoe@school.edu,1234567,\n"

const masterCSV = "Student ID,W1 PA\n1234567,95\n"

const assignmentCSV = "Student ID,Percent score\n1234567,88\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommandMergeMaster(t *testing.T) {
	dir := t.TempDir()
	section := writeFile(t, dir, "section_a.csv", sectionCSV)
	master := writeFile(t, dir, "master.csv", masterCSV)
	outDir := filepath.Join(dir, "out")

	cmd := NewCommand(&application.Mock{})
	cmd.SetArgs([]string{
		"--lecture", section,
		"--master", master,
		"--output-dir", outDir,
	})
	require.NoError(t, cmd.Execute())

	merged, err := os.ReadFile(filepath.Join(outDir, "section_a_merged.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(merged), "95")

	// No orphans or mismatches, so no report files.
	assert.NoFileExists(t, filepath.Join(outDir, "orphaned_students.csv"))
	assert.NoFileExists(t, filepath.Join(outDir, "failed_id_matches.csv"))
}

func TestCommandMergeAssignmentDir(t *testing.T) {
	dir := t.TempDir()
	section := writeFile(t, dir, "section_a.csv", sectionCSV)

	srcDir := filepath.Join(dir, "exports")
	require.NoError(t, os.Mkdir(srcDir, 0o755))
	writeFile(t, srcDir, "Week_1_Participation_Activities_bblearn.csv", assignmentCSV)
	writeFile(t, srcDir, "ignored.txt", "not a csv")
	outDir := filepath.Join(dir, "out")

	cmd := NewCommand(&application.Mock{})
	cmd.SetArgs([]string{
		"--lecture", section,
		"--assignment-dir", srcDir,
		"--output-dir", outDir,
	})
	require.NoError(t, cmd.Execute())

	merged, err := os.ReadFile(filepath.Join(outDir, "section_a_merged.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(merged), "88")
}

func TestCommandMergeOrphanReport(t *testing.T) {
	dir := t.TempDir()
	section := writeFile(t, dir, "section_a.csv", sectionCSV)
	master := writeFile(t, dir, "master.csv",
		"Student ID,W1 PA\n1234567,95\n9999999,70\n")
	outDir := filepath.Join(dir, "out")

	cmd := NewCommand(&application.Mock{})
	cmd.SetArgs([]string{
		"--lecture", section,
		"--master", master,
		"--output-dir", outDir,
	})
	require.NoError(t, cmd.Execute())

	orphans, err := os.ReadFile(filepath.Join(outDir, "orphaned_students.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(orphans), "9999999")
}

func TestCommandMergeRequiresSource(t *testing.T) {
	dir := t.TempDir()
	section := writeFile(t, dir, "section_a.csv", sectionCSV)

	cmd := NewCommand(&application.Mock{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--lecture", section})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assignment")
}
