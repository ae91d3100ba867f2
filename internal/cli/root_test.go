package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execCLI runs the root command with a fresh command tree and captured output.
func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// projectFlags returns the persistent flags pointing every path at a temp
// project root.
func projectFlags(root string) []string {
	return []string{
		"--yield-dir", filepath.Join(root, "data/crop_yield"),
		"--abandonment-dir", filepath.Join(root, "data/county_crop_abandonment"),
		"--field-dir", filepath.Join(root, "output/field_production"),
		"--rollup-dir", filepath.Join(root, "output/county_rollup"),
		"--state", filepath.Join(root, "state.db"),
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cropstat v")
}

func TestGenRunReportFlow(t *testing.T) {
	root := t.TempDir()
	flags := projectFlags(root)

	out, err := execCLI(t, append([]string{"gen", "--counties", "3"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated")
	assert.Contains(t, out, "crop yield rows")

	out, err = execCLI(t, append([]string{"run"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	// The injected quality issues must show up in the report tables.
	assert.Contains(t, out, "Data Quality Summary")
	assert.Contains(t, out, "DuplicateDiscarded")

	out, err = execCLI(t, append([]string{"report"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "Data Quality Summary")
}

func TestRunQuietSuppressesReport(t *testing.T) {
	root := t.TempDir()
	flags := projectFlags(root)

	_, err := execCLI(t, append([]string{"gen", "--counties", "2"}, flags...)...)
	require.NoError(t, err)

	out, err := execCLI(t, append([]string{"run", "--quiet"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.NotContains(t, out, "Data Quality Summary")
}

func TestRunFailsWithoutInputData(t *testing.T) {
	root := t.TempDir()

	_, err := execCLI(t, append([]string{"run"}, projectFlags(root)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structural error")
}

func TestReportWithoutRuns(t *testing.T) {
	root := t.TempDir()

	out, err := execCLI(t, append([]string{"report"}, projectFlags(root)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet")
}

func TestDoctorCommand(t *testing.T) {
	root := t.TempDir()
	flags := projectFlags(root)

	// Before gen the input checks fail.
	out, err := execCLI(t, append([]string{"doctor"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")

	_, err = execCLI(t, append([]string{"gen", "--counties", "2"}, flags...)...)
	require.NoError(t, err)

	out, err = execCLI(t, append([]string{"doctor"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "checks passed")
}

func TestInvalidUnmatchedPolicyRejected(t *testing.T) {
	root := t.TempDir()

	_, err := execCLI(t, append([]string{"run", "--unmatched-policy", "explode"}, projectFlags(root)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmatched_policy")
}
