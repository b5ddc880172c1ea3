package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pre/internal/diag"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	// Diagnostics is the rendered diagnostic list, for context.
	Diagnostics string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diagnostics != "" {
		fmt.Fprintf(&buf, "\nDiagnostics:\n%s\n", e.Diagnostics)
	}
	return buf.String()
}

// Evaluate runs the scenario's assertions in order and returns the first
// failure.
func (r *Result) Evaluate() error {
	for _, a := range r.Scenario.Assertions {
		if err := r.evaluate(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) evaluate(a Assertion) error {
	switch a.Type {
	case AssertDiagnostic:
		return r.assertDiagnostic(a)
	case AssertNoDiagnostics:
		if n := r.Diags.Len(); n > 0 {
			return r.fail(a, "no diagnostics", fmt.Sprintf("%d diagnostic(s)", n))
		}
	case AssertNoErrors:
		if n := r.Diags.Count(diag.Error); n > 0 {
			return r.fail(a, "no errors", fmt.Sprintf("%d error(s)", n))
		}
	case AssertOutputContains:
		out, ok := r.Outputs[a.File]
		if !ok {
			return r.fail(a, a.File+" rewritten", "unchanged")
		}
		if !strings.Contains(squash(out), squash(a.Text)) {
			return r.fail(a, fmt.Sprintf("%s containing %q", a.File, a.Text), out)
		}
	case AssertUnchanged:
		if out, ok := r.Outputs[a.File]; ok {
			return r.fail(a, a.File+" unchanged", out)
		}
	case AssertStats:
		want := fmt.Sprintf("declarations=%d calls=%d forwards=%d", a.Declarations, a.Calls, a.Forwards)
		got := fmt.Sprintf("declarations=%d calls=%d forwards=%d", r.Stats.Declarations, r.Stats.Calls, r.Stats.Forwards)
		if want != got {
			return r.fail(a, want, got)
		}
	case AssertCompiles:
		if err := r.TypeCheck(); err != nil {
			return r.fail(a, "package type-checks", err.Error())
		}
	case AssertTypeError:
		err := r.TypeCheck()
		if err == nil {
			return r.fail(a, "type error containing "+a.Text, "package type-checks")
		}
		if !strings.Contains(err.Error(), a.Text) {
			return r.fail(a, "type error containing "+a.Text, err.Error())
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (r *Result) assertDiagnostic(a Assertion) error {
	for _, d := range r.Diags.Resolve() {
		if string(d.Code) != a.Code {
			continue
		}
		if a.Severity != "" && d.Severity.String() != a.Severity {
			continue
		}
		if a.Line != 0 && d.Line != a.Line {
			continue
		}
		if a.Message != "" && !strings.Contains(d.Message, a.Message) {
			continue
		}
		return nil
	}
	want := a.Code
	if a.Line != 0 {
		want = fmt.Sprintf("%s on line %d", a.Code, a.Line)
	}
	return r.fail(a, want, "not reported")
}

func (r *Result) fail(a Assertion, expected, actual string) error {
	return &AssertionError{
		Type:        a.Type,
		Expected:    expected,
		Actual:      actual,
		Diagnostics: r.Diags.String(),
	}
}

// squash drops all white space so comparisons ignore layout.
func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}
