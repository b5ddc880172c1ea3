package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(p)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name, "scenario name matches its file")

			res, err := Run(s)
			require.NoError(t, err)
			assert.NoError(t, res.Evaluate())
		})
	}
}

func TestGoldenSnapshot(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/missing_reason.yaml")
	require.NoError(t, err)

	res, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
}

func TestFailedAssertionExplains(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "expects a diagnostic that is not reported"
files:
  a.go: "package a\n"
assertions:
  - type: diagnostic
    code: missing-justification
    line: 1
`))
	require.NoError(t, err)
	res, err := Run(s)
	require.NoError(t, err)

	err = res.Evaluate()
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertDiagnostic, ae.Type)
	assert.Equal(t, "missing-justification on line 1", ae.Expected)
	assert.Contains(t, err.Error(), "Assertion failed: diagnostic")
}

func TestCustomLibrary(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: custom_library
description: "markers are qualified with the configured package"
library: example.com/contracts
files:
  a.go: |
    package a

    //pre:require "ok", reason = "always"
    func F() {}

    func G() {
        //pre:assert "ok", reason = "always"
        F()
    }
assertions:
  - type: output_contains
    file: a.go
    text: 'F(struct{P0 contracts.Custom ` + "`" + `pre:"ok"` + "`" + `}{})'
  - type: compiles
`))
	require.NoError(t, err)
	res, err := Run(s)
	require.NoError(t, err)
	assert.NoError(t, res.Evaluate())
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nfile: {}\n",
			want: "field file not found",
		},
		{
			name: "missing files",
			yaml: "name: x\ndescription: d\nassertions: [{type: compiles}]\n",
			want: "files map is required",
		},
		{
			name: "not a go file",
			yaml: "name: x\ndescription: d\nfiles: {a.txt: x}\nassertions: [{type: compiles}]\n",
			want: `"a.txt" is not a Go file`,
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nfiles: {a.go: x}\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "output of unknown file",
			yaml: "name: x\ndescription: d\nfiles: {a.go: x}\nassertions: [{type: unchanged, file: b.go}]\n",
			want: `file "b.go" is not part of the scenario`,
		},
		{
			name: "diagnostic without code",
			yaml: "name: x\ndescription: d\nfiles: {a.go: x}\nassertions: [{type: diagnostic}]\n",
			want: "code is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
