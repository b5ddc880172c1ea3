//go:build prestub

package cpu

func X86() bool
