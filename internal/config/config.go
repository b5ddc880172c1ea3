// Package config loads the project configuration from pre.cue.
//
// The file is CUE, checked against a closed schema that also supplies the
// defaults:
//
//	library:   "github.com/roach88/pre"
//	cache_dir: ".pre_cache"
//	exclude: ["testdata", "stubs"]
//	mirror: [{stubs: "stubs/unix", out: "."}]
//
// A missing file is not an error; Default is used instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pre/internal/library"
)

// FileName is the configuration file looked up at the module root.
const FileName = "pre.cue"

// DefaultCacheDir holds shadow files and the overlay.
const DefaultCacheDir = ".pre_cache"

const schema = `
#Mirror: {
	stubs: string & !=""
	out:   string | *"."
}

#Config: {
	library:   string & !="" | *"` + library.DefaultPath + `"
	cache_dir: string & !="" | *"` + DefaultCacheDir + `"
	exclude: [...string] | *[]
	mirror: [...#Mirror] | *[]
}
`

// Mirror is one mirror job: a stub tree and where to write its output.
type Mirror struct {
	Stubs string `json:"stubs"`
	Out   string `json:"out"`
}

// Config is the decoded configuration.
type Config struct {
	// Library is the import path of the marker package.
	Library string `json:"library"`
	// CacheDir is relative to the module root.
	CacheDir string `json:"cache_dir"`
	// Exclude lists slash-separated directory patterns skipped by the walk.
	Exclude []string `json:"exclude"`
	Mirror  []Mirror `json:"mirror"`
}

// Default returns the configuration used without a pre.cue file.
func Default() Config {
	return Config{Library: library.DefaultPath, CacheDir: DefaultCacheDir}
}

// Error codes for LoadError.
const (
	ErrCodeRead   = "E001"
	ErrCodeSyntax = "E002"
	ErrCodeSchema = "E003"
)

// LoadError is a configuration problem with its CUE position, if known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads dir/pre.cue.
func Load(dir string) (Config, error) {
	filename := filepath.Join(dir, FileName)
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(filename, src)
}

// Parse decodes configuration source.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		panic(fmt.Sprintf("config: invalid schema: %v", err))
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, cueError(ErrCodeSyntax, err)
	}

	v = s.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(ErrCodeSchema, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, cueError(ErrCodeSchema, err)
	}
	return cfg, nil
}

func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	e := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// Excluded reports whether the slash-separated relative directory rel
// matches one of the exclude patterns, either whole or by its base name.
func (c Config) Excluded(rel string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}
