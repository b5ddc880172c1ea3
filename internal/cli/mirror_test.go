package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stub = `//go:build prestub

// Package sys forwards to the system package.
//
//pre:defs_for pub example.com/sys
package sys

//pre:require valid_ptr(p), reason = "written through"
func Fill(p *byte)
`

func TestMirrorFromArguments(t *testing.T) {
	dir := writeFiles(t, map[string]string{"go.mod": module, "stubs/sys/sys.go": stub})

	stdout, _, err := execute(t, dir, "mirror", "stubs/sys", "gen")
	require.NoError(t, err)
	assert.Contains(t, stdout, "generated 1 file(s) from 1 stub tree(s)")

	data, err := os.ReadFile(filepath.Join(dir, "gen", "sys", "sys.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "func Fill(p *byte) {")
	assert.Contains(t, string(data), "//pre:require valid_ptr(p)")
}

func TestMirrorFromConfig(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod":           module,
		"stubs/sys/sys.go": stub,
		"pre.cue":          `mirror: [{stubs: "stubs/sys"}]`,
	})

	_, _, err := execute(t, dir, "mirror")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "sys", "sys.go"))
}

func TestMirrorWithoutJobs(t *testing.T) {
	dir := writeFiles(t, map[string]string{"go.mod": module})

	_, stderr, err := execute(t, dir, "mirror")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "no mirror jobs configured")
}

func TestMirrorReportsStubErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod":           module,
		"stubs/bad/bad.go": "package bad\n\nfunc Fill(p *byte)\n",
	})

	_, stderr, err := execute(t, dir, "mirror", "stubs/bad")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "needs a //pre:defs_for directive")
}
