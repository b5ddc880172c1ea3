//go:build prestub

package notarget

func F()
