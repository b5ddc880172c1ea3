//go:build prestub

package kern

func Hostname() (string, error)
