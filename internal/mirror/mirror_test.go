package mirror

import (
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pre/internal/diag"
)

func load(t *testing.T, dir string) (*Module, *diag.List) {
	t.Helper()
	fset := token.NewFileSet()
	diags := diag.NewList(fset)
	m, err := Load(fset, filepath.Join("testdata", "stubs", dir), diags)
	require.NoError(t, err)
	return m, diags
}

func TestLoad(t *testing.T) {
	m, diags := load(t, "unix")
	assert.Zero(t, diags.Len())

	assert.Equal(t, "unix", m.Name)
	assert.Equal(t, "golang.org/x/sys/unix", m.Target)
	assert.True(t, m.Public)
	assert.Equal(t, []string{"// Package unix mirrors a few system calls."}, m.Doc)

	require.Len(t, m.Files, 1)
	f := m.Files[0]
	assert.Equal(t, []string{`"unsafe"`}, f.Imports)
	assert.Equal(t, "unix", f.Alias)
	require.Len(t, f.Funcs, 3)

	read := f.Funcs[0]
	assert.Equal(t, "Read", read.Name)
	assert.Equal(t, []Param{{"fd", "int"}, {"p", "[]byte"}}, read.Params)
	assert.Equal(t, "(n int, err error)", read.Results)

	mmap := f.Funcs[1]
	assert.Equal(t, []Param{{"addr", "unsafe.Pointer"}, {"arg1", "int"}, {"flags", "unix.Flags"}}, mmap.Params)
	assert.Equal(t, "(unix.Handle, error)", mmap.Results)

	sum := f.Funcs[2]
	assert.Equal(t, "[T unix.Number]", sum.TypeParams)
	assert.Equal(t, []string{"T"}, sum.TypeArgs)
	assert.True(t, sum.Variadic)

	require.Len(t, m.Modules, 1)
	cpu := m.Modules[0]
	assert.Equal(t, "cpu", cpu.Name)
	assert.Equal(t, "golang.org/x/sys/unix/cpu", cpu.Target)
	assert.True(t, cpu.Public, "visibility is inherited")
	assert.Equal(t, 4, m.FuncCount())
}

func TestRenderGolden(t *testing.T) {
	m, _ := load(t, "unix")
	outs, err := Render(m)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, "unix/unix.go", outs[0].Path)
	assert.Equal(t, "unix/cpu/cpu.go", outs[1].Path)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "unix.go", outs[0].Source)

	nested := string(outs[1].Source)
	assert.Contains(t, nested, "// Code generated by pre mirror from cpu/cpu.go; DO NOT EDIT.")
	assert.Contains(t, nested, "package cpu")
	assert.Contains(t, nested, `cpu "golang.org/x/sys/unix/cpu"`)
	assert.Contains(t, nested, "func X86() bool {\n\treturn cpu.X86()\n}")
}

func TestRenderInternal(t *testing.T) {
	m, diags := load(t, "sysctl")
	assert.Zero(t, diags.Len())
	assert.False(t, m.Public)
	assert.Equal(t, "example.com/os/sysctl", m.Target)
	require.Len(t, m.Modules, 1)
	kern := m.Modules[0]
	assert.False(t, kern.Public)
	assert.Equal(t, "example.com/os/sysctl/kern", kern.Target)
	assert.Equal(t, "internal/sysctl", OutDir(m))

	outs, err := Render(m)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "internal/sysctl/sysctl.go", outs[0].Path)
	assert.Equal(t, "internal/sysctl/kern/kern.go", outs[1].Path)
	assert.Contains(t, string(outs[0].Source), "//pre:require valid_ptr(buf)")
	assert.Contains(t, string(outs[1].Source), "return kern.Hostname()")
}

func TestLoadRejectsNonSignatures(t *testing.T) {
	m, diags := load(t, "bad")
	bad := diags.ByCode(diag.MalformedAnnotation)
	require.Len(t, bad, 2)
	for _, d := range bad {
		assert.Equal(t, "expected a function signature or an import", d.Message)
	}
	require.Len(t, m.Files, 1)
	require.Len(t, m.Files[0].Funcs, 1)
	assert.Equal(t, "Ok", m.Files[0].Funcs[0].Name)
}

func TestLoadNeedsTarget(t *testing.T) {
	_, diags := load(t, "notarget")
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.All()[0].Message, "//pre:defs_for")
}

func TestLoadEmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(token.NewFileSet(), dir, diag.NewList(nil))
	assert.ErrorIs(t, err, ErrNoStubs)
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	err := Write(root, []Output{{Path: "a/b/c.go", Source: []byte("package b\n")}})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "a", "b", "c.go"))
	require.NoError(t, err)
	assert.Equal(t, "package b\n", string(got))
}

func TestFreshName(t *testing.T) {
	taken := map[string]bool{"unix": true, "unix1": true}
	assert.Equal(t, "unix2", freshName("unix", taken))
	assert.Equal(t, "type1", freshName("type", nil))
	assert.Equal(t, "yaml_v3", identFrom("yaml.v3"))
	assert.Equal(t, "_9p", identFrom("9p"))
}
