package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pre/internal/config"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/library"
)

const modFile = "module example.com/app\n\ngo 1.25\n"

const annotated = `package app

// Load reads p.
//
//pre:require valid_ptr(p), reason = "dereferenced"
func Load(p *int) int { return *p }

func Use(x int) int {
	//pre:assert valid_ptr(p), reason = "p points at x"
	return Load(&x)
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, src := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	}
	return root
}

func newEngine(t *testing.T, root string, cfg config.Config) *Engine {
	t.Helper()
	e, err := New(root, cfg, library.Default(), nil)
	require.NoError(t, err)
	return e
}

func TestRunWritesOverlay(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":   modFile,
		"app.go":   annotated,
		"plain.go": "package app\n\nfunc Plain() {}\n",
	})
	e := newEngine(t, root, config.Default())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Files)
	assert.Equal(t, 1, rep.Rewritten)
	assert.Equal(t, 1, rep.Stats.Declarations)
	assert.Equal(t, 1, rep.Stats.Calls)

	ov, err := ReadOverlay(rep.Overlay)
	require.NoError(t, err)
	src := filepath.Join(e.Root, "app.go")
	require.Equal(t, []string{src}, ov.Sources())

	shadow := ov.Replace[src]
	assert.Equal(t, e.CacheDir(), filepath.Dir(shadow))
	assert.Regexp(t, `^app_[0-9a-f]{12}\.go$`, filepath.Base(shadow))

	data, err := os.ReadFile(shadow)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"github.com/roach88/pre"`)
	assert.Contains(t, out, "pre.ValidPtr `pre:\"p\"`")
	assert.Contains(t, out, "//line "+src+":", "positions map back to the source")
	assert.NotContains(t, out, "dereferenced", "comments are stripped")
}

func TestRunIsDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{"go.mod": modFile, "app.go": annotated})

	first, err := newEngine(t, root, config.Default()).Run(context.Background())
	require.NoError(t, err)
	a, err := ReadOverlay(first.Overlay)
	require.NoError(t, err)

	second, err := newEngine(t, root, config.Default()).Run(context.Background())
	require.NoError(t, err)
	b, err := ReadOverlay(second.Overlay)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	shadows, err := filepath.Glob(filepath.Join(root, config.DefaultCacheDir, "*.go"))
	require.NoError(t, err)
	assert.Len(t, shadows, 1, "stale shadows are removed")
}

func TestRunBlockedByErrors(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod": modFile,
		"app.go": annotated,
		"bad.go": "package app\n\n//pre:require valid_ptr(q)\nfunc Bad(q *int) {}\n",
	})
	e := newEngine(t, root, config.Default())

	_, err := e.Run(context.Background())
	require.True(t, errors.Is(err, ErrDiagnostics))
	require.Len(t, e.Diags.ByCode(diag.MissingJustification), 1)

	_, statErr := os.Stat(filepath.Join(root, config.DefaultCacheDir, OverlayName))
	assert.True(t, os.IsNotExist(statErr), "no overlay when errors were reported")
}

func TestWalkSkips(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":          modFile,
		"app.go":          annotated,
		".hidden/h.go":    annotated,
		"_scratch/s.go":   annotated,
		"vendor/v/v.go":   annotated,
		"testdata/t.go":   annotated,
		"nested/go.mod":   "module example.com/nested\n",
		"nested/n.go":     annotated,
		"gen/skipme/g.go": annotated,
	})
	cache := filepath.Join(root, config.DefaultCacheDir)
	require.NoError(t, os.MkdirAll(cache, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cache, "old.go"), []byte(annotated), 0o644))
	cfg := config.Default()
	cfg.Exclude = []string{"gen/*"}
	e := newEngine(t, root, cfg)

	var seen []string
	require.NoError(t, e.walk(context.Background(), func(name string) error {
		rel, err := filepath.Rel(e.Root, name)
		require.NoError(t, err)
		seen = append(seen, filepath.ToSlash(rel))
		return nil
	}))
	assert.Equal(t, []string{"app.go"}, seen)
}

func TestStubFilesAreSkipped(t *testing.T) {
	stub := `//go:build prestub

// Package sys mirrors a call.
//
//pre:defs_for example.com/sys
package sys

//pre:require valid_ptr(p), reason = "written through"
func Fill(p *byte)
`
	root := writeTree(t, map[string]string{"go.mod": modFile, "stubs/sys/sys.go": stub})
	e := newEngine(t, root, config.Default())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Files)
	assert.Zero(t, rep.Rewritten)
	assert.Empty(t, e.Diags.All())
}

func TestNestedStubPackagesAreSkipped(t *testing.T) {
	nested := `//go:build prestub

package cpu

//pre:require valid_ptr(p), reason = "written through"
func Probe(p *byte)
`
	root := writeTree(t, map[string]string{
		"go.mod":               modFile,
		"stubs/sys/cpu/cpu.go": nested,
		"app.go":               annotated,
	})
	e := newEngine(t, root, config.Default())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Files)
	assert.Equal(t, 1, rep.Rewritten)
	assert.Equal(t, 1, rep.Stats.Declarations)
}

func TestMirrorStubRootIsNotWalked(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":         modFile,
		"stubs/sys/a.go": "package sys\n\nfunc Plain()\n",
		"app.go":         annotated,
	})
	cfg := config.Default()
	cfg.Mirror = []config.Mirror{{Stubs: "stubs/sys", Out: "."}}
	e := newEngine(t, root, cfg)

	var seen []string
	require.NoError(t, e.walk(context.Background(), func(name string) error {
		seen = append(seen, filepath.Base(name))
		return nil
	}))
	assert.Equal(t, []string{"app.go"}, seen)
}

func TestConversionToPackageTypeTakesNoMarker(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":   modFile,
		"app.go":   annotated,
		"types.go": "package app\n\ntype Handle int\n",
		"use.go": `package app

func Wrap(x int) Handle {
	//pre:assert valid_ptr(p), reason = "p points at x"
	return Handle(Load(&x))
}
`,
	})
	e := newEngine(t, root, config.Default())

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	ov, err := ReadOverlay(rep.Overlay)
	require.NoError(t, err)
	data, err := os.ReadFile(ov.Replace[filepath.Join(e.Root, "use.go")])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Handle(Load(&x,")
	assert.NotContains(t, string(data), "Handle(Load(&x),")
}

func TestRunMirrorsBeforeRewriting(t *testing.T) {
	stub := `//go:build prestub

// Package sys mirrors a call.
//
//pre:defs_for example.com/sys
package sys

//pre:require valid_ptr(p), reason = "written through"
func Fill(p *byte)
`
	root := writeTree(t, map[string]string{"go.mod": modFile, "stubs/sys/sys.go": stub})
	cfg := config.Default()
	cfg.Mirror = []config.Mirror{{Stubs: "stubs/sys", Out: "."}}
	e := newEngine(t, root, cfg)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Mirrored)

	generated := filepath.Join(e.Root, "internal", "sys", "sys.go")
	data, err := os.ReadFile(generated)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "// Code generated by pre mirror"))

	ov, err := ReadOverlay(rep.Overlay)
	require.NoError(t, err)
	assert.Contains(t, ov.Replace, generated, "the generated wrapper is rewritten too")
}

func TestRunHonorsCancellation(t *testing.T) {
	root := writeTree(t, map[string]string{"go.mod": modFile, "app.go": annotated})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, root, config.Default()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
