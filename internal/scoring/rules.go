// Package scoring recomputes the completion score of a card whenever a
// mutation event touches it. The score is always derived from current state,
// never adjusted incrementally, so a missed event can only leave it stale
// until the next trigger, not wrong forever.
package scoring

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// attributePrefix marks a check that looks inside the card's attributes JSON
// rather than at a direct column, e.g. "attributes.business_criticality".
const attributePrefix = "attributes."

// TypeRules is the completeness rule set for one card type. Checks name
// direct fields (name, description, lifecycle, owner) or nested attributes
// with the "attributes." prefix. MinRelations > 0 adds one more check that
// passes when the card has at least that many relations.
type TypeRules struct {
	Checks       []string `yaml:"checks"`
	MinRelations int      `yaml:"min_relations,omitempty"`
}

// totalChecks is the denominator of the score for this rule set.
func (r TypeRules) totalChecks() int {
	n := len(r.Checks)
	if r.MinRelations > 0 {
		n++
	}
	return n
}

// RuleSet maps card types to their completeness rules. Types without an
// entry score 100.
type RuleSet struct {
	Version string               `yaml:"version,omitempty"`
	Types   map[string]TypeRules `yaml:"types"`
}

// Validate checks the rule set for malformed entries.
func (rs *RuleSet) Validate() error {
	for typ, rules := range rs.Types {
		if strings.TrimSpace(typ) == "" {
			return fmt.Errorf("scoring: rule set contains an empty card type")
		}
		if rules.MinRelations < 0 {
			return fmt.Errorf("scoring: %s: min_relations must not be negative", typ)
		}
		for _, check := range rules.Checks {
			if strings.TrimSpace(check) == "" {
				return fmt.Errorf("scoring: %s: empty check", typ)
			}
		}
	}
	return nil
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Version: "1",
		Types: map[string]TypeRules{
			"application": {
				Checks: []string{
					"description",
					"lifecycle",
					"owner",
					attributePrefix + "business_criticality",
					attributePrefix + "technical_suitability",
				},
				MinRelations: 1,
			},
			"business_capability": {
				Checks: []string{"description", "owner"},
			},
			"it_component": {
				Checks:       []string{"description", "lifecycle", attributePrefix + "provider"},
				MinRelations: 1,
			},
			"data_object": {
				Checks: []string{"description", attributePrefix + "classification"},
			},
		},
	}
}

// LoadRules reads and validates a YAML rule set from path.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scoring: read rules: %w", err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("scoring: parse rules %s: %w", path, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Loader reads a YAML rules file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *RuleSet
	onChange []func(*RuleSet)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	rs, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, current: rs}, nil
}

// Rules returns the current (latest) rule set.
func (l *Loader) Rules() *RuleSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the rules reload.
func (l *Loader) OnChange(fn func(*RuleSet)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the rules on file
// changes. Call the returned stop function to clean up. A reload that fails
// to parse keeps the previous rules.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scoring: rules watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("scoring: rules watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					rs, err := LoadRules(l.path)
					if err != nil {
						continue
					}
					l.mu.Lock()
					l.current = rs
					callbacks := make([]func(*RuleSet), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(rs)
					}
				}
			case <-w.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
