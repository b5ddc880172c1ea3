package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pre/internal/config"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/engine"
	"github.com/roach88/pre/internal/library"
)

// MirrorResult is the output of the mirror command.
type MirrorResult struct {
	Jobs        int             `json:"jobs" yaml:"jobs"`
	Files       int             `json:"files" yaml:"files"`
	Diagnostics []diag.Resolved `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// WriteText implements TextWriter.
func (r MirrorResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "generated %d file(s) from %d stub tree(s)\n", r.Files, r.Jobs)
	return err
}

// NewMirrorCommand creates the mirror command.
func NewMirrorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [stubs [out]]",
		Short: "Generate forwarding packages from stub trees",
		Long: `Generate a forwarding package for each stub tree. A stub package declares
bodiless functions and names the package they forward to:

	//pre:defs_for pub golang.org/x/sys/unix
	package unix

Without arguments the mirror jobs of ` + config.FileName + ` run. out defaults to the
module root.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runMirror(rootOpts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := newSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		job := config.Mirror{Stubs: args[0], Out: "."}
		if len(args) > 1 {
			job.Out = args[1]
		}
		s.cfg.Mirror = []config.Mirror{job}
	}
	if len(s.cfg.Mirror) == 0 {
		return s.fail(ExitCommandError, ErrCodeConfig, "no mirror jobs configured", nil)
	}

	// Mirroring emits no markers, so the library is never resolved.
	e, err := engine.New(rootOpts.Dir, s.cfg, library.Default(), s.logger)
	if err != nil {
		return s.fail(ExitCommandError, ErrCodeGeneric, "cannot start", err)
	}
	n, err := e.Mirror(cmd.Context())
	if err != nil {
		return s.fail(ExitCommandError, ErrCodeGeneric, "mirror failed", err)
	}
	return s.finish(e.Diags, MirrorResult{Jobs: len(s.cfg.Mirror), Files: n, Diagnostics: e.Diags.Resolve()})
}
