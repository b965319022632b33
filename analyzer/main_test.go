package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.solver4all.com/azaryc2s/fleetmip"
)

func writeResult(t *testing.T, dir, name string, sol fleetmip.Solution) {
	t.Helper()
	data, err := json.Marshal(sol)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	writeResult(t, dir, "b.solution.json", fleetmip.Solution{
		Scenario: "b", Status: fleetmip.STATUS_TIME_LIMIT, Provisional: true, Objective: 10, Gap: 0.25,
		Served: []string{"L1"}, Unserved: []string{"L2", "L3"},
	})
	writeResult(t, dir, "a.solution.json", fleetmip.Solution{
		Scenario: "a", Status: fleetmip.STATUS_OPTIMAL, Verified: true, Objective: 1234.5,
		Served: []string{"L1", "L2"}, Comment: "Threads=1, Gap=0",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte("{}"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, summarize(dir, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "1234.50", rows[1][5])
	assert.Equal(t, "Threads=1, Gap=0", rows[1][14])
	assert.Equal(t, "b", rows[2][0])
	assert.Equal(t, "TIME_LIMIT", rows[2][1])
	assert.Equal(t, "true", rows[2][3])
	assert.Equal(t, "2", rows[2][9])
}

func TestSummarize_MissingDir(t *testing.T) {
	assert.Error(t, summarize(filepath.Join(t.TempDir(), "nope"), &bytes.Buffer{}))
}
