//go:build prestub

//pre:defs_for example.com/bad
package bad

type T int

func Body() {}

func Ok(x int) int
