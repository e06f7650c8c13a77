package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		for _, name := range []string{"encoding", "locale", "skip-invalid"} {
			f := evalCmd.Flags().Lookup(name)
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEvalCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(file, []byte("metode_pengajaran,fasilitas_pembelajaran\n5,5\n3,3\n,4\n"), 0o600))

	out, err := run(t, "eval", file, "--config", filepath.Join(dir, "none.yaml"), "--locale", "id", "--skip-invalid")
	require.NoError(t, err)

	var got struct {
		Average float64 `json:"average"`
		Rounded string  `json:"rounded"`
		Label   string  `json:"label"`
		Count   int     `json:"count"`
		Skipped []struct {
			Row int `json:"row"`
		} `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "4.00", got.Rounded)
	assert.Equal(t, "Baik", got.Label)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, 4, got.Skipped[0].Row)
}

func TestEvalCommandRejectsInvalidRows(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(file, []byte("metode_pengajaran,fasilitas_pembelajaran\n5,x\n"), 0o600))

	_, err := run(t, "eval", file, "--config", filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	out, err := run(t, "check", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "engine OK"), out)
	assert.True(t, strings.Contains(out, "IF teaching_method is very_good AND learning_facilities is very_good THEN satisfaction is very_good"), out)
	assert.True(t, strings.Contains(out, "metode_pengajaran"), out)
}

func TestCheckCommandReportsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  implication: lukasiewicz\n"), 0o600))

	_, err := run(t, "check", "--config", path)
	assert.Error(t, err)
}
