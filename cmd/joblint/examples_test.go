package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var examplesDir = filepath.Join("..", "..", "examples", "jobs")

func TestExampleJobs(t *testing.T) {
	workspace(t, nil)

	tests := []struct {
		file     string
		stages   []string
		errors   int
		warnings int
		failed   bool
	}{
		{"release.yml", nil, 0, 5, false},
		{"release.yml", []string{"notify", "announce"}, 0, 3, false},
		{"nightly.json", nil, 0, 3, false},
		{"legacy.yml", nil, 4, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			args := []string{"lint", "-o", "json", filepath.Join(examplesDir, tt.file)}
			for _, s := range tt.stages {
				args = append(args, "--stage", s)
			}
			out, err := execute(t, "", args...)
			if tt.failed {
				assert.ErrorIs(t, err, errLintFailed)
			} else {
				require.NoError(t, err)
			}

			var reports []map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &reports))
			require.Len(t, reports, 1)
			assert.EqualValues(t, tt.errors, reports[0]["errors"])
			assert.EqualValues(t, tt.warnings, reports[0]["warnings"])
		})
	}
}

func TestExampleJobs_Strict(t *testing.T) {
	workspace(t, nil)

	_, err := execute(t, "", "lint", "--strict", "--stage", "notify,announce",
		filepath.Join(examplesDir, "release.yml"), filepath.Join(examplesDir, "nightly.json"))
	assert.NoError(t, err)

	_, err = execute(t, "", "lint", "--strict", "--fail-on", "false", filepath.Join(examplesDir, "legacy.yml"))
	assert.ErrorIs(t, err, errLintFailed, "schema errors fail on their own")
}
