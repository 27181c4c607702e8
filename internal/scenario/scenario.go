// Package scenario matches notes to condition playbooks. Each playbook
// carries the structured "next time" opportunity candidates for its
// condition; the engine ranks them, it never invents its own.
package scenario

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/dermbill/internal/model"
)

//go:embed data/scenarios.yaml
var scenariosYAML []byte

// Scenario is one condition playbook.
type Scenario struct {
	Name              string                       `yaml:"name" json:"name"`
	Summary           string                       `yaml:"summary" json:"summary"`
	Keywords          []string                     `yaml:"keywords" json:"keywords"`
	Opportunities     []model.OpportunityCandidate `yaml:"opportunities" json:"opportunities"`
	DocumentationTips []string                     `yaml:"documentation_tips" json:"documentation_tips,omitempty"`
}

// Match is a scenario with its relevance to one note.
type Match struct {
	Scenario
	Score        int      `json:"score"`
	MatchedTerms []string `json:"matched_terms"`
}

// Library holds the embedded playbooks.
type Library struct {
	scenarios []Scenario
	byName    map[string]Scenario
}

// Load parses the embedded playbooks.
func Load() (*Library, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(scenariosYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	lib := &Library{byName: make(map[string]Scenario, len(doc.Scenarios))}
	for _, s := range doc.Scenarios {
		if s.Name == "" || len(s.Keywords) == 0 {
			return nil, fmt.Errorf("scenario %q: name and keywords are required", s.Name)
		}
		key := normalizeName(s.Name)
		if _, dup := lib.byName[key]; dup {
			return nil, fmt.Errorf("duplicate scenario %q", s.Name)
		}
		lib.byName[key] = s
		lib.scenarios = append(lib.scenarios, s)
	}
	return lib, nil
}

// Names lists scenario names in sorted order.
func (l *Library) Names() []string {
	out := make([]string, 0, len(l.scenarios))
	for _, s := range l.scenarios {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Scenario returns a playbook by name. Lookup is case-insensitive and
// treats spaces and underscores alike.
func (l *Library) Scenario(name string) (Scenario, bool) {
	s, ok := l.byName[normalizeName(name)]
	return s, ok
}

// Match scores every playbook against the note text and returns the top
// max matches. A keyword scores its word count, so "plaque psoriasis"
// outweighs "psoriasis"; keywords match whole-word. Ties break on name so
// repeated runs order identically.
func (l *Library) Match(text string, max int) []Match {
	var out []Match
	for _, s := range l.scenarios {
		var matched []string
		score := 0
		for _, kw := range s.Keywords {
			if containsWord(text, kw) {
				matched = append(matched, kw)
				score += len(strings.Fields(kw))
			}
		}
		if score > 0 {
			out = append(out, Match{Scenario: s, Score: score, MatchedTerms: matched})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// MatchConditions matches against a diagnosis list instead of free text.
func (l *Library) MatchConditions(conditions []string, max int) []Match {
	return l.Match(strings.Join(conditions, " "), max)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}

func containsWord(text, term string) bool {
	text = strings.ToLower(text)
	term = strings.ToLower(term)
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(text[i-1])
		after := i+len(term) == len(text) || !isWordByte(text[i+len(term)])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
