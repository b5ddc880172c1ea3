//go:build prestub

// Package sysctl mirrors the sysctl calls used by the library.
//
//pre:defs_for example.com/os/sysctl
package sysctl

//pre:require valid_ptr(buf), reason = "the kernel fills buf"
func Get(name string, buf *byte, n int) error
