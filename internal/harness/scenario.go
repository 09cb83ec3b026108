package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance test: a graph, the passes to run over it and
// what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path of the CUE graph description. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Graph string `yaml:"graph"`

	// Passes run in order over the compiled graph. Empty means optimize.
	Passes []string `yaml:"passes,omitempty"`

	Options RunOptions `yaml:"options,omitempty"`

	// Probes run on the input graph before any pass.
	Probes []Probe `yaml:"probes,omitempty"`

	// Assertions validate the output graph and the decision report.
	Assertions []Assertion `yaml:"assertions"`
}

// RunOptions override optimizer defaults and the graph's hardware
// attributes. Zero values leave the default in place.
type RunOptions struct {
	MaxIterations  int  `yaml:"max_iterations,omitempty"`
	NoHoist        bool `yaml:"no_hoist,omitempty"`
	NumWarps       int  `yaml:"num_warps,omitempty"`
	ThreadsPerWarp int  `yaml:"threads_per_warp,omitempty"`
}

// Probe queries an analysis on the input graph.
type Probe struct {
	// Type is "backward" or "hoist".
	Type string `yaml:"type"`

	// Func defaults to the first function of the graph.
	Func string `yaml:"func,omitempty"`

	// Value names a conversion result (backward) or a loop parameter
	// (hoist).
	Value string `yaml:"value"`

	Expect ProbeExpect `yaml:"expect"`
}

// ProbeExpect lists the expected probe outcome. Nil fields are not checked.
type ProbeExpect struct {
	Feasible *bool `yaml:"feasible,omitempty"`

	// Delta is the backward plan's net conversion change.
	Delta *int `yaml:"delta,omitempty"`

	// Conversions is the number of conversions a hoist plan removes.
	Conversions *int `yaml:"conversions,omitempty"`
}

// Assertion validates the output graph or the decision report.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is the expected number (conversions, decisions).
	Count int `yaml:"count,omitempty"`

	// Phase and Outcome filter decisions. Empty matches any.
	Phase   string `yaml:"phase,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Value is the expected flag (converged).
	Value bool `yaml:"value,omitempty"`

	// Text is the substring searched for (ir_contains, ir_not_contains).
	Text string `yaml:"text,omitempty"`
}

// Pass names.
const (
	PassOptimize     = "optimize"
	PassFixup        = "fixup"
	PassCanonicalize = "canonicalize"
	PassSweep        = "sweep"
)

// Probe types.
const (
	ProbeBackward = "backward"
	ProbeHoist    = "hoist"
)

// Assertion type constants.
const (
	AssertConversions   = "conversions"
	AssertDecisions     = "decisions"
	AssertConverged     = "converged"
	AssertValid         = "valid"
	AssertIRContains    = "ir_contains"
	AssertIRNotContains = "ir_not_contains"
)

// LoadScenario reads and parses a scenario YAML file. The graph path is
// resolved relative to the scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}
	if _, err := os.Stat(scenario.Graph); err != nil {
		return nil, fmt.Errorf("invalid scenario: graph file not found: %s", scenario.Graph)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario. Paths are left as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// passes returns the passes to run, applying the default.
func (s *Scenario) passes() []string {
	if len(s.Passes) == 0 {
		return []string{PassOptimize}
	}
	return s.Passes
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if len(s.Assertions) == 0 && len(s.Probes) == 0 {
		return fmt.Errorf("at least one probe or assertion is required")
	}
	if s.Options.MaxIterations < 0 || s.Options.NumWarps < 0 || s.Options.ThreadsPerWarp < 0 {
		return fmt.Errorf("options must be non-negative")
	}

	for i, p := range s.Passes {
		switch p {
		case PassOptimize, PassFixup, PassCanonicalize, PassSweep:
		default:
			return fmt.Errorf("passes[%d]: unknown pass %q", i, p)
		}
	}
	for i, p := range s.Probes {
		if p.Type != ProbeBackward && p.Type != ProbeHoist {
			return fmt.Errorf("probes[%d]: unknown probe type %q", i, p.Type)
		}
		if p.Value == "" {
			return fmt.Errorf("probes[%d]: value is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertConversions, AssertDecisions:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertConverged, AssertValid:
	case AssertIRContains, AssertIRNotContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
