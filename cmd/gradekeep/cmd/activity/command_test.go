package activity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/cmd/application"
)

const reportCSV = "First name,Last name,Email,Class section,Date of submission,Score,Max score,Autograded test results\n" +
	"Jane,Doe,jdoe@school.edu,A,2026-01-15,8,10,passed\n" +
	"Jane,Doe,jdoe@school.edu,A,2026-01-16,9,10,passed\n"

const sectionCSV = "Last Name,First Name,School Email,Student ID,W3 CA\n" +
	"Doe,Jane,jdoe@school.edu,1234567,\n"

func TestCommandActivity(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "week3_q1.csv")
	section := filepath.Join(dir, "section_a.csv")
	require.NoError(t, os.WriteFile(report, []byte(reportCSV), 0o644))
	require.NoError(t, os.WriteFile(section, []byte(sectionCSV), 0o644))
	outDir := filepath.Join(dir, "out")

	cmd := NewCommand(&application.Mock{})
	cmd.SetArgs([]string{
		report,
		"--lecture", section,
		"--name", "W3 CA",
		"--output-dir", outDir,
	})
	require.NoError(t, cmd.Execute())

	merged, err := os.ReadFile(filepath.Join(outDir, "section_a_merged.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(merged), "90")
}

func TestCommandActivityRequiresReports(t *testing.T) {
	cmd := NewCommand(&application.Mock{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--lecture", "a.csv", "--name", "W1 CA"})
	require.Error(t, cmd.Execute())
}
