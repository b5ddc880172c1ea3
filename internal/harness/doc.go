// Package harness runs rewrite scenarios described in YAML.
//
// A scenario is a small package given inline. The harness rewrites every
// file, type-checks the result against the marker package and evaluates
// the scenario's assertions:
//
//	name: mismatched_assertion
//	description: "A call asserting the wrong condition does not compile"
//	files:
//	  app.go: |
//	    package app
//
//	    //pre:require "n > 0", reason = "divides by n"
//	    func Div(m, n int) int { return m / n }
//
//	    func Use() int {
//	        //pre:assert "n >= 0", reason = "wrong bound"
//	        return Div(4, 2)
//	    }
//	assertions:
//	  - type: no_errors
//	  - type: output_contains
//	    file: app.go
//	    text: 'Div(4, 2, struct{P0 pre.Custom `pre:"n >= 0"`}{})'
//	  - type: type_error
//	    text: "in argument to Div"
//
// # Assertion types
//
//   - diagnostic: a diagnostic with the given code was reported; severity,
//     line and message (substring) narrow the match
//   - no_diagnostics: nothing was reported
//   - no_errors: no error diagnostic was reported
//   - output_contains: the rewritten file contains text, ignoring white space
//   - unchanged: the file was not rewritten
//   - stats: the rewrite counters equal declarations, calls and forwards
//   - compiles: the rewritten package type-checks
//   - type_error: type-checking fails with a message containing text
//
// RunWithGolden additionally compares the stats and diagnostics of a run
// with testdata/golden/<name>.golden.
package harness
