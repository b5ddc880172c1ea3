// Package rewrite attaches precondition markers to Go source.
//
// A Pass walks one parsed file. Function declarations whose doc comment
// carries //pre:require directives gain a trailing marker parameter; the
// outermost call of a statement preceded or trailed by //pre:assert
// directives gains the matching marker argument, and a //pre:def directive
// redirects that call while a copy of the original call is kept in a dead
// branch so it is still type checked.
//
// The pass mutates the file in place. It never returns an error: every
// problem with the input is reported to the pass's diag.Sink, and a node
// with an error-severity diagnostic is left as written.
package rewrite
