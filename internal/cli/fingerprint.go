package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pre/internal/check"
	"github.com/roach88/pre/internal/diag"
)

// FingerprintEntry is the marker of one annotated function.
type FingerprintEntry struct {
	Function string `json:"function" yaml:"function"`
	Position string `json:"position" yaml:"position"`
	Marker   string `json:"marker" yaml:"marker"`
	Digest   string `json:"digest" yaml:"digest"`
}

// FingerprintResult is the output of the fingerprint command.
type FingerprintResult struct {
	Functions []FingerprintEntry `json:"functions" yaml:"functions"`
}

// WriteText implements TextWriter.
func (r FingerprintResult) WriteText(w io.Writer) error {
	for _, e := range r.Functions {
		if _, err := fmt.Fprintf(w, "%s\n\t%s\n\t%s\n", e.Function, e.Marker, e.Digest); err != nil {
			return err
		}
	}
	return nil
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint [packages]",
		Short: "Print the marker of every annotated function",
		Long: `Print the canonical marker type each annotated function receives, with
its SHA-256 digest. Two functions with the same digest accept the same
call-site assertions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runFingerprint(rootOpts *RootOptions, patterns []string, cmd *cobra.Command) error {
	s, err := newSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	c := check.New(rootOpts.Dir, s.logger)
	if len(patterns) > 0 {
		c.Patterns = patterns
	}
	res, err := c.Run(cmd.Context())
	if err != nil {
		return s.fail(ExitCommandError, ErrCodeLoad, "cannot load packages", err)
	}

	out := FingerprintResult{Functions: []FingerprintEntry{}}
	for _, d := range res.Declarations {
		out.Functions = append(out.Functions, FingerprintEntry{
			Function: d.Name,
			Position: c.Fset.Position(d.Pos).String(),
			Marker:   d.Marker.String(),
			Digest:   d.Marker.Digest(),
		})
	}
	// Contract mismatches are the check command's business.
	return s.finish(diag.NewList(c.Fset), out)
}
