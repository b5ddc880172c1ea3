package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/engine"
)

type rewriteOptions struct {
	cacheDir string
	noMirror bool
}

// RewriteResult is the output of the rewrite command.
type RewriteResult struct {
	engine.Report `yaml:",inline"`
	Diagnostics   []diag.Resolved `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// WriteText implements TextWriter.
func (r RewriteResult) WriteText(w io.Writer) error {
	if r.Overlay == "" {
		_, err := fmt.Fprintf(w, "scanned %d file(s); nothing written\n", r.Files)
		return err
	}
	_, err := fmt.Fprintf(w, "rewrote %d of %d file(s): %d declaration(s), %d call(s), %d forward(s)\noverlay: %s\n",
		r.Rewritten, r.Files, r.Stats.Declarations, r.Stats.Calls, r.Stats.Forwards, r.Overlay)
	return err
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &rewriteOptions{}
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Write shadow sources and the build overlay",
		Long: `Rewrite every annotated file of the module into the cache directory and
write overlay.json for go build -overlay.

Configured mirror jobs run first. Nothing is written when an error is
reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "override the configured cache directory")
	cmd.Flags().BoolVar(&opts.noMirror, "no-mirror", false, "skip the configured mirror jobs")
	return cmd
}

func runRewrite(rootOpts *RootOptions, opts *rewriteOptions, cmd *cobra.Command) error {
	s, err := newSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	if opts.cacheDir != "" {
		s.cfg.CacheDir = opts.cacheDir
	}
	if opts.noMirror {
		s.cfg.Mirror = nil
	}
	lib, err := s.library(cmd.Context())
	if err != nil {
		return err
	}

	e, err := engine.New(rootOpts.Dir, s.cfg, lib, s.logger)
	if err != nil {
		return s.fail(ExitCommandError, ErrCodeGeneric, "cannot start", err)
	}
	rep, err := e.Run(cmd.Context())
	if err != nil && !errors.Is(err, engine.ErrDiagnostics) {
		return s.fail(ExitCommandError, ErrCodeGeneric, "rewrite failed", err)
	}
	return s.finish(e.Diags, RewriteResult{Report: rep, Diagnostics: e.Diags.Resolve()})
}
