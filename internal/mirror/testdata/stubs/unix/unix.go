//go:build prestub

// Package unix mirrors a few system calls.
//
//pre:defs_for pub golang.org/x/sys/unix
package unix

import "unsafe"

// Read reads from fd.
//
//pre:require valid_ptr(p), reason = "the kernel writes through p"
func Read(fd int, p []byte) (n int, err error)

func Mmap(addr unsafe.Pointer, _ int, flags Flags) (Handle, error)

func Sum[T Number](xs ...T) T
