// Package engine drives a whole-module rewrite.
//
// A run walks the module, rewrites every Go file that carries directives
// or calls annotated functions, prints the result to a shadow file in the
// cache directory and records the mapping in overlay.json:
//
//	{"Replace": {"/abs/path/file.go": "/abs/path/.pre_cache/file_3f2a9c1b7d40.go"}}
//
// The overlay is consumed by the go command:
//
//	go build -overlay .pre_cache/overlay.json ./...
//
// Shadow files keep their original positions through //line directives, so
// compiler errors point at the source the user wrote. Nothing is written
// when any error diagnostic was reported.
package engine
