package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "db_path: " + filepath.Join(dir, "habit.db") + "\ntimezone: UTC\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg, "--no-color"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAddListDelete(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, cfg, "add", "--title", "Run", "--time", "07:00", "--days", "weekdays")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "✓ Alarm "), out)
	id := strings.Fields(out)[2]
	assert.Contains(t, out, "Run at 07:00, Weekdays")

	out, err = execute(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "| 07:00 | Run | Weekdays | 10 minutes | on | 10 | `"+id+"` |")

	out, err = execute(t, cfg, "pending", "--alarm", id)
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(out, "`"+id+"`"))

	out, err = execute(t, cfg, "toggle", id, "--off")
	require.NoError(t, err)
	assert.Contains(t, out, "Alarm Run disabled")

	out, err = execute(t, cfg, "done", id, "--date", "2024-06-03")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 2024-06-03")

	out, err = execute(t, cfg, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "All alarms in sync")

	_, err = execute(t, cfg, "delete", id, "--yes")
	require.NoError(t, err)

	_, err = execute(t, cfg, "graph", id)
	assert.Error(t, err)
}

func TestAddRejectsBadDays(t *testing.T) {
	_, err := execute(t, writeConfig(t), "add", "--title", "Run", "--time", "07:00", "--days", "someday")
	assert.Error(t, err)
}

func TestToggleFlagsExclusive(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, cfg, "add", "--title", "Run", "--time", "07:00")
	require.NoError(t, err)
	id := strings.Fields(out)[2]

	_, err = execute(t, cfg, "toggle", id, "--on", "--off")
	assert.Error(t, err)
}
