package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/reconcile"
)

//go:embed schema.cue
var schemaSource []byte

// Scenario is one scripted run of a session.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Session is the session id. Empty means the scenario name.
	Session string `yaml:"session,omitempty" json:"session,omitempty"`

	// DurationMS is the animation duration. Nil means the default.
	DurationMS *int `yaml:"duration_ms,omitempty" json:"duration_ms,omitempty"`

	ReverseLayout bool   `yaml:"reverse_layout,omitempty" json:"reverse_layout,omitempty"`
	GhostSuffix   string `yaml:"ghost_suffix,omitempty" json:"ghost_suffix,omitempty"`
	IndexLookup   bool   `yaml:"index_lookup,omitempty" json:"index_lookup,omitempty"`

	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is exactly one of submit, advance or expect.
type Step struct {
	// Submit is the snapshot to submit. An empty list clears the session.
	Submit *[]Item `yaml:"submit,omitempty" json:"submit,omitempty"`

	// Rejected marks a submit that must fail with INVALID_LIST.
	Rejected bool `yaml:"rejected,omitempty" json:"rejected,omitempty"`

	// Advance moves the manual timer forward, in milliseconds.
	Advance *int `yaml:"advance,omitempty" json:"advance,omitempty"`

	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Expect checks the session after the preceding steps.
type Expect struct {
	// Kind, when set, checks the kind of the latest frame and its
	// "key:STATE" pairs against States.
	Kind   ir.FrameKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	States []string     `yaml:"states,omitempty" json:"states,omitempty"`

	// Settled checks the keys of the last settled list.
	Settled *[]string `yaml:"settled,omitempty" json:"settled,omitempty"`

	// Frames checks the total number of frames emitted so far.
	Frames *int `yaml:"frames,omitempty" json:"frames,omitempty"`
}

// Item is a scenario list item. In YAML it is either a bare key, whose value
// is the key itself, or a {key, value} mapping.
type Item struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// UnmarshalYAML accepts a scalar key or a mapping.
func (it *Item) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		it.Key, it.Value = n.Value, n.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i < len(n.Content); i += 2 {
			switch k := n.Content[i].Value; k {
			case "key", "value":
			default:
				return fmt.Errorf("line %d: unknown item field %q", n.Content[i].Line, k)
			}
		}
		type plain Item
		var p plain
		if err := n.Decode(&p); err != nil {
			return err
		}
		*it = Item(p)
		if it.Value == "" {
			it.Value = it.Key
		}
		return nil
	default:
		return fmt.Errorf("line %d: item must be a key or a {key, value} mapping", n.Line)
	}
}

// Duration returns the animation duration of the scenario.
func (s *Scenario) Duration() time.Duration {
	if s.DurationMS == nil {
		return reconcile.DefaultDuration
	}
	return time.Duration(*s.DurationMS) * time.Millisecond
}

// SessionID returns the id the scenario's session runs under.
func (s *Scenario) SessionID() string {
	if s.Session != "" {
		return s.Session
	}
	return s.Name
}

// LoadScenario reads a scenario file. Files ending in .cue are validated
// against the scenario schema; anything else is read as YAML.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc *Scenario
	if filepath.Ext(path) == ".cue" {
		sc, err = ParseCUE(data, filepath.Base(path))
	} else {
		sc, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseYAML decodes and validates a YAML scenario. Unknown fields are errors.
func ParseYAML(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// ParseCUE unifies a CUE scenario with the #Scenario schema, then decodes
// the concrete result through the YAML path.
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	// JSON is valid YAML.
	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("exporting CUE scenario: %w", err)
	}
	return ParseYAML(raw)
}

// FindScenarios returns the scenario files under dir, sorted by path. A file
// path is returned as is.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(p) {
		case ".yaml", ".yml", ".cue":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks required fields and step shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.DurationMS != nil && *s.DurationMS < 0 {
		return fmt.Errorf("duration_ms must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Submit != nil {
		set++
	}
	if step.Advance != nil {
		set++
	}
	if step.Expect != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of submit, advance or expect is required")
	}

	if step.Rejected && step.Submit == nil {
		return fmt.Errorf("rejected applies to submit only")
	}
	if step.Advance != nil && *step.Advance < 0 {
		return fmt.Errorf("advance must be non-negative")
	}
	if step.Submit != nil {
		for j, it := range *step.Submit {
			if strings.TrimSpace(it.Key) == "" {
				return fmt.Errorf("submit[%d]: key is required", j)
			}
		}
	}
	if e := step.Expect; e != nil {
		switch e.Kind {
		case "", ir.FrameTransitional, ir.FrameSettled:
		default:
			return fmt.Errorf("expect: unknown frame kind %q", e.Kind)
		}
		if e.Kind == "" && e.States != nil {
			return fmt.Errorf("expect: states requires kind")
		}
		if e.Kind == "" && e.Settled == nil && e.Frames == nil {
			return fmt.Errorf("expect: one of kind, settled or frames is required")
		}
		for _, pair := range e.States {
			if err := validatePair(pair); err != nil {
				return fmt.Errorf("expect: %w", err)
			}
		}
	}
	return nil
}

// validatePair checks a "key:STATE" pair. Keys may contain colons; the state
// is whatever follows the last one.
func validatePair(pair string) error {
	i := strings.LastIndex(pair, ":")
	if i <= 0 {
		return fmt.Errorf("%q is not a key:STATE pair", pair)
	}
	if _, err := ir.ParseAnimationState(pair[i+1:]); err != nil {
		return fmt.Errorf("%q: %w", pair, err)
	}
	return nil
}
