package cli

import (
	"encoding/json"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	t.Setenv("GOWORK", "off")
	t.Setenv("GOFLAGS", "-mod=mod")
}

func TestCheckReportsMissingAssertion(t *testing.T) {
	requireGo(t)
	dir := writeFiles(t, map[string]string{
		"go.mod": module,
		"app.go": "package app\n\n//pre:require \"n > 0\", reason = \"divides by n\"\nfunc Div(m, n int) int { return m / n }\n\nfunc Use() int { return Div(4, 2) }\n",
	})

	_, stderr, err := execute(t, dir, "check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, `error[missing-assertion]: call to example.com/app.Div requires "n > 0"`)
}

func TestFingerprintLists(t *testing.T) {
	requireGo(t)
	dir := writeFiles(t, map[string]string{"go.mod": module, "app.go": goodSource})

	stdout, _, err := execute(t, dir, "--format", "json", "fingerprint")
	require.NoError(t, err)

	var resp struct {
		Data FingerprintResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Functions, 1)
	fn := resp.Data.Functions[0]
	assert.Equal(t, "example.com/app.Load", fn.Function)
	assert.Equal(t, "struct{P0 pre.ValidPtr `pre:\"p\"`}", fn.Marker)
	assert.Len(t, fn.Digest, 64)
}
