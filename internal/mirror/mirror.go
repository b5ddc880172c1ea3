// Package mirror generates forwarding packages for external functions.
//
// A stub package lists the signatures of functions that live in another
// package, without bodies, under a package doc directive:
//
//	//go:build prestub
//
//	//pre:defs_for pub golang.org/x/sys/unix
//	package unix
//
//	//pre:require valid_ptr(p), reason = "the kernel writes through p"
//	func Read(fd int, p []byte) (n int, err error)
//
// Render turns the stub tree into real Go packages whose functions call the
// mirrored ones with the same arguments. Directive comments are carried
// over, so the rewrite pass attaches markers to the forwarders like it
// does to hand-written functions. Each subdirectory of a stub package is a
// nested stub package mirroring the import path extended by the directory
// name.
package mirror

// BuildTag keeps stub files out of ordinary builds.
const BuildTag = "prestub"

// Module is a parsed stub package and its nested stub packages.
type Module struct {
	// Name is the package name of the stub.
	Name string
	// Dir is the stub directory, relative to the root stub directory.
	Dir string
	// Target is the import path being mirrored.
	Target string
	// Public is set by `defs_for pub`. It is inherited by nested modules.
	Public bool
	// Doc holds the package doc lines without directives.
	Doc []string

	Files   []*File
	Modules []*Module
}

// File is one stub source file.
type File struct {
	// Name is the base file name.
	Name string
	// Imports holds each import spec as written, e.g. `u "unsafe"`.
	Imports []string
	Funcs   []*Func
	// Alias is the import name of the mirrored package in the output.
	Alias string

	// names collects identifiers the forwarding import must not shadow.
	names map[string]bool
}

// Func is one mirrored signature.
type Func struct {
	Name string
	// Doc holds the doc comment lines, directives included.
	Doc []string
	// TypeParams is the type parameter list as written, brackets included.
	TypeParams string
	// TypeArgs names the type parameters in order.
	TypeArgs []string
	Params   []Param
	Variadic bool
	// Results is the result list as written, or empty.
	Results string
}

// Param is one parameter. Unnamed and blank parameters have been given
// fresh names.
type Param struct {
	Name string
	Type string
}

// Walk calls fn for m and every nested module, parents first.
func (m *Module) Walk(fn func(*Module)) {
	fn(m)
	for _, sub := range m.Modules {
		sub.Walk(fn)
	}
}

// FuncCount returns the number of signatures in m and its nested modules.
func (m *Module) FuncCount() int {
	n := 0
	m.Walk(func(mod *Module) {
		for _, f := range mod.Files {
			n += len(f.Funcs)
		}
	})
	return n
}
