package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/pre/internal/config"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/library"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Dir     string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// resolveLibrary looks up the marker package. Tests replace it to avoid
// invoking the go command.
var resolveLibrary = func(ctx context.Context, dir, path string) (library.Library, error) {
	return library.NewResolver(dir).Resolve(ctx, path)
}

// NewRootCommand creates the root command for the pre CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pre",
		Short: "pre - compile-time checked preconditions",
		Long: `Attach preconditions to Go functions with //pre: directives and have
the compiler reject every call site that does not assert them.

The rewrite command writes shadow copies of the annotated files and an
overlay for the go command:

	pre rewrite && go build -overlay .pre_cache/overlay.json ./...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", ".", "module root")

	cmd.AddCommand(NewRewriteCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewMirrorCommand(opts))
	cmd.AddCommand(NewFingerprintCommand(opts))

	return cmd
}

// session is what every command starts from.
type session struct {
	opts   *RootOptions
	out    *OutputFormatter
	logger *slog.Logger
	cfg    config.Config
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s := &session{
		opts: opts,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
		},
		logger: newLogger(opts.Verbose, cmd.ErrOrStderr()),
	}
	cfg, err := config.Load(opts.Dir)
	if err != nil {
		return nil, s.fail(ExitCommandError, ErrCodeConfig, "cannot load "+config.FileName, err)
	}
	s.cfg = cfg
	return s, nil
}

// newLogger logs at Info, or Debug when verbose. Each invocation gets its
// own run id.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if id, err := uuid.NewV7(); err == nil {
		logger = logger.With("run", id.String())
	}
	return logger
}

// library resolves the configured marker package.
func (s *session) library(ctx context.Context) (library.Library, error) {
	lib, err := resolveLibrary(ctx, s.opts.Dir, s.cfg.Library)
	if err != nil {
		return library.Library{}, s.fail(ExitCommandError, ErrCodeLibrary, "cannot resolve the marker package", err)
	}
	s.logger.Debug("resolved marker package", "library", lib.String())
	return lib, nil
}

// fail reports a command error and returns it for the exit code.
func (s *session) fail(code int, errCode, message string, err error) error {
	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	if werr := s.out.Error(errCode, detail, nil); werr != nil {
		return werr
	}
	return WrapExitError(code, message, err)
}

// finish prints data and the diagnostics, and turns error diagnostics
// into ExitFailure.
func (s *session) finish(diags *diag.List, data any) error {
	status := "ok"
	if diags.HasErrors() {
		status = "failed"
	}
	if s.opts.Format == "text" && diags.Len() > 0 {
		fmt.Fprintln(s.out.errWriter(), diags.String())
	}
	if err := s.out.Success(status, data); err != nil {
		return err
	}
	if diags.HasErrors() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d error(s) reported", diags.Count(diag.Error)))
	}
	return nil
}
