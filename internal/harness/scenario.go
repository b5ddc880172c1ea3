package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one rewrite test case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Library overrides the marker package import path.
	Library string `yaml:"library,omitempty"`

	// Files maps file names to Go source. All files form one package.
	Files map[string]string `yaml:"files"`

	// Assertions are evaluated in order against the result.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of a run.
type Assertion struct {
	Type string `yaml:"type"`

	// diagnostic
	Code     string `yaml:"code,omitempty"`
	Severity string `yaml:"severity,omitempty"`
	Line     int    `yaml:"line,omitempty"`
	Message  string `yaml:"message,omitempty"`

	// output_contains, unchanged
	File string `yaml:"file,omitempty"`
	// output_contains, type_error
	Text string `yaml:"text,omitempty"`

	// stats
	Declarations int `yaml:"declarations,omitempty"`
	Calls        int `yaml:"calls,omitempty"`
	Forwards     int `yaml:"forwards,omitempty"`
}

// Assertion type constants.
const (
	AssertDiagnostic     = "diagnostic"
	AssertNoDiagnostics  = "no_diagnostics"
	AssertNoErrors       = "no_errors"
	AssertOutputContains = "output_contains"
	AssertUnchanged      = "unchanged"
	AssertStats          = "stats"
	AssertCompiles       = "compiles"
	AssertTypeError      = "type_error"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// FileNames returns the scenario's file names, sorted.
func (s *Scenario) FileNames() []string {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Files) == 0 {
		return fmt.Errorf("files map is required and must be non-empty")
	}
	for name := range s.Files {
		if !strings.HasSuffix(name, ".go") {
			return fmt.Errorf("files: %q is not a Go file", name)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, s, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, s *Scenario, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
		if a.Severity != "" && a.Severity != "error" && a.Severity != "warning" {
			return fmt.Errorf("assertions[%d]: severity must be error or warning", index)
		}
	case AssertOutputContains, AssertUnchanged:
		if _, ok := s.Files[a.File]; !ok {
			return fmt.Errorf("assertions[%d]: file %q is not part of the scenario", index, a.File)
		}
		if a.Type == AssertOutputContains && a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertTypeError:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for type_error", index)
		}
	case AssertNoDiagnostics, AssertNoErrors, AssertStats, AssertCompiles:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
