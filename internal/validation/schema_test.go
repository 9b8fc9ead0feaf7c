package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSpec = `
name: oncology-benchmark
cohort: lung
dataset: cohorts/lung.csv
horizon: 365
n_splits: 200
train_fraction: 0.75
workers: 4
variants:
  - name: random_survival_forest
    params:
      trees: 200
  - name: proportional_hazards
`

func TestValidateSpecBytes_ValidSpec(t *testing.T) {
	errs := ValidateSpecBytes([]byte(validSpec))
	assert.Empty(t, errs)
}

func TestValidateSpecBytes_Violations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantLoc string
	}{
		{
			name:    "missing required fields",
			content: "name: x\n",
			wantLoc: "/",
		},
		{
			name: "train fraction above one",
			content: "name: x\ncohort: c\ndataset: d.csv\nhorizon: 10\n" +
				"train_fraction: 1.5\n",
			wantLoc: "/train_fraction",
		},
		{
			name: "unknown variant name",
			content: "name: x\ncohort: c\ndataset: d.csv\nhorizon: 10\n" +
				"variants:\n  - name: neural_net\n",
			wantLoc: "/variants/0/name",
		},
		{
			name: "unknown top-level key",
			content: "name: x\ncohort: c\ndataset: d.csv\nhorizon: 10\n" +
				"model: gpt\n",
			wantLoc: "/",
		},
		{
			name: "negative tie threshold",
			content: "name: x\ncohort: c\ndataset: d.csv\nhorizon: 10\n" +
				"tie_threshold: -0.1\n",
			wantLoc: "/tie_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSpecBytes([]byte(tt.content))
			require.NotEmpty(t, errs)

			found := false
			for _, e := range errs {
				if strings.HasPrefix(e, tt.wantLoc) {
					found = true
				}
			}
			assert.True(t, found, "no error at %s in %v", tt.wantLoc, errs)
		})
	}
}

func TestValidateSpecBytes_UnparsableYAML(t *testing.T) {
	errs := ValidateSpecBytes([]byte("name: [unclosed"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "YAML parse error")
}

func TestValidateSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validSpec), 0o644))

	errs, err := ValidateSpecFile(path)
	require.NoError(t, err)
	assert.Empty(t, errs)

	_, err = ValidateSpecFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
