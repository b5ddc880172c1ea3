package rewrite

import (
	"go/ast"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/pre/internal/library"
)

// markerName picks the local name that qualifies marker types in f. An
// existing named or plain import of the library is reused; otherwise the
// package name is used unless f already declares it, in which case an
// alias with a numeric suffix is chosen.
func markerName(f *ast.File, lib library.Library) string {
	taken := make(map[string]bool)
	for _, spec := range f.Imports {
		path, _ := strconv.Unquote(spec.Path.Value)
		if spec.Name != nil {
			switch spec.Name.Name {
			case "_", ".":
				continue
			}
			if path == lib.Path {
				return spec.Name.Name
			}
			taken[spec.Name.Name] = true
			continue
		}
		if path == lib.Path {
			return lib.Name
		}
		taken[lastElem(path)] = true
	}
	for _, d := range f.Decls {
		for _, name := range declNames(d) {
			taken[name] = true
		}
	}

	name := lib.Name
	for i := 1; taken[name]; i++ {
		name = lib.Name + strconv.Itoa(i)
	}
	return name
}

// addImport makes sure the library is imported under r.pkg.
func (r *fileRun) addImport() {
	lib := r.pass.Library
	for _, spec := range r.file.Imports {
		path, _ := strconv.Unquote(spec.Path.Value)
		if path != lib.Path {
			continue
		}
		if spec.Name == nil && r.pkg == lib.Name {
			return
		}
		if spec.Name != nil && spec.Name.Name == r.pkg {
			return
		}
	}
	if r.pkg == lib.Name {
		astutil.AddImport(r.pass.Fset, r.file, lib.Path)
		return
	}
	astutil.AddNamedImport(r.pass.Fset, r.file, r.pkg, lib.Path)
}

func lastElem(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func declNames(d ast.Decl) []string {
	var out []string
	switch d := d.(type) {
	case *ast.FuncDecl:
		if d.Recv == nil {
			out = append(out, d.Name.Name)
		}
	case *ast.GenDecl:
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.ValueSpec:
				for _, n := range s.Names {
					out = append(out, n.Name)
				}
			case *ast.TypeSpec:
				out = append(out, s.Name.Name)
			}
		}
	}
	return out
}
