package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pre/internal/check"
	"github.com/roach88/pre/internal/diag"
)

// CheckResult is the output of the check command.
type CheckResult struct {
	Declarations int             `json:"declarations" yaml:"declarations"`
	Calls        int             `json:"calls" yaml:"calls"`
	Diagnostics  []diag.Resolved `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// WriteText implements TextWriter.
func (r CheckResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "checked %d call(s) against %d annotated function(s)\n", r.Calls, r.Declarations)
	return err
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var noTests bool
	cmd := &cobra.Command{
		Use:   "check [packages]",
		Short: "Check call sites against declared preconditions",
		Long: `Type-check the packages and compare the preconditions asserted at each
call with the ones the callee declares.

Reports the same contract violations the rewritten build would fail on,
naming the conditions involved. Packages default to ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, !noTests, cmd)
		},
	}
	cmd.Flags().BoolVar(&noTests, "no-tests", false, "skip test files")
	return cmd
}

func runCheck(rootOpts *RootOptions, patterns []string, tests bool, cmd *cobra.Command) error {
	s, err := newSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	c := check.New(rootOpts.Dir, s.logger)
	if len(patterns) > 0 {
		c.Patterns = patterns
	}
	c.Tests = tests
	res, err := c.Run(cmd.Context())
	if err != nil {
		return s.fail(ExitCommandError, ErrCodeLoad, "cannot load packages", err)
	}
	return s.finish(c.Diags, CheckResult{
		Declarations: len(res.Declarations),
		Calls:        res.Calls,
		Diagnostics:  c.Diags.Resolve(),
	})
}
