package mirror

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Output is one generated file, relative to the output root.
type Output struct {
	Path   string
	Source []byte
}

// OutDir returns the output directory of the root module: the package name
// for public stubs, internal/<name> otherwise.
func OutDir(m *Module) string {
	if m.Public {
		return m.Name
	}
	return path.Join("internal", m.Name)
}

// Render generates the forwarding packages for m and its nested modules.
func Render(m *Module) ([]Output, error) {
	var out []Output
	err := render(m, OutDir(m), &out)
	return out, err
}

func render(m *Module, dir string, out *[]Output) error {
	for i, f := range m.Files {
		src, err := renderFile(m, f, i == 0)
		if err != nil {
			return err
		}
		*out = append(*out, Output{Path: path.Join(dir, f.Name), Source: src})
	}
	for _, sub := range m.Modules {
		if err := render(sub, path.Join(dir, path.Base(sub.Dir)), out); err != nil {
			return err
		}
	}
	return nil
}

func renderFile(m *Module, f *File, withDoc bool) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by pre mirror from %s; DO NOT EDIT.\n\n", path.Join(m.Dir, f.Name))
	if withDoc {
		for _, line := range m.Doc {
			b.WriteString(line + "\n")
		}
	}
	fmt.Fprintf(&b, "package %s\n", m.Name)

	imports := append([]string(nil), f.Imports...)
	if len(f.Funcs) > 0 {
		imports = append(imports, f.Alias+" "+strconv.Quote(m.Target))
	}
	if len(imports) > 0 {
		b.WriteString("\nimport (\n")
		for _, spec := range imports {
			b.WriteString("\t" + spec + "\n")
		}
		b.WriteString(")\n")
	}

	for _, fn := range f.Funcs {
		b.WriteString("\n")
		writeFunc(&b, f.Alias, fn)
	}

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("mirror: generated invalid source for %s: %w", path.Join(m.Dir, f.Name), err)
	}
	return src, nil
}

func writeFunc(b *bytes.Buffer, alias string, fn *Func) {
	for _, line := range fn.Doc {
		b.WriteString(line + "\n")
	}

	params := make([]string, len(fn.Params))
	args := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Name + " " + p.Type
		args[i] = p.Name
	}
	if fn.Variadic && len(args) > 0 {
		args[len(args)-1] += "..."
	}

	fmt.Fprintf(b, "func %s%s(%s)", fn.Name, fn.TypeParams, strings.Join(params, ", "))
	if fn.Results != "" {
		b.WriteString(" " + fn.Results)
	}
	b.WriteString(" {\n\t")
	if fn.Results != "" {
		b.WriteString("return ")
	}
	b.WriteString(alias + "." + fn.Name)
	if len(fn.TypeArgs) > 0 {
		b.WriteString("[" + strings.Join(fn.TypeArgs, ", ") + "]")
	}
	b.WriteString("(" + strings.Join(args, ", ") + ")\n}\n")
}

// Write stores outputs under root, creating directories as needed.
func Write(root string, outputs []Output) error {
	for _, o := range outputs {
		name := filepath.Join(root, filepath.FromSlash(o.Path))
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
		if err := os.WriteFile(name, o.Source, 0o644); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}
	return nil
}
