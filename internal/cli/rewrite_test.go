package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const module = "module example.com/app\n\ngo 1.21\n"

const goodSource = `package app

//pre:require valid_ptr(p), reason = "dereferenced"
func Load(p *int) int { return *p }

func Use(x int) int {
	//pre:assert valid_ptr(p), reason = "p points at x"
	return Load(&x)
}
`

func TestRewriteWritesOverlay(t *testing.T) {
	dir := writeFiles(t, map[string]string{"go.mod": module, "app.go": goodSource})

	stdout, _, err := execute(t, dir, "rewrite")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rewrote 1 of 1 file(s): 1 declaration(s), 1 call(s), 0 forward(s)")
	assert.FileExists(t, filepath.Join(dir, ".pre_cache", "overlay.json"))
}

func TestRewriteJSONReport(t *testing.T) {
	dir := writeFiles(t, map[string]string{"go.mod": module, "app.go": goodSource})

	stdout, _, err := execute(t, dir, "--format", "json", "rewrite", "--cache-dir", "build/cache")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Files     int    `json:"files"`
			Rewritten int    `json:"rewritten"`
			Overlay   string `json:"overlay"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Rewritten)
	assert.Equal(t, filepath.Join("build", "cache", "overlay.json"), rel(t, dir, resp.Data.Overlay))
}

func TestRewriteFailsOnErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod": module,
		"app.go": "package app\n\n//pre:require valid_ptr(p)\nfunc Load(p *int) int { return *p }\n",
	})

	stdout, stderr, err := execute(t, dir, "rewrite")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "error[missing-justification]: a justification is required")
	assert.Contains(t, stdout, "nothing written")
	_, statErr := os.Stat(filepath.Join(dir, ".pre_cache"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRewriteBadConfig(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod":  module,
		"pre.cue": `library: 42`,
	})

	_, stderr, err := execute(t, dir, "rewrite")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "Error [E010]: cannot load pre.cue")
}

func rel(t *testing.T, base, target string) string {
	t.Helper()
	abs, err := filepath.Abs(base)
	require.NoError(t, err)
	r, err := filepath.Rel(abs, target)
	require.NoError(t, err)
	return r
}
