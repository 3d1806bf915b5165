package tagfilter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Config holds the tag rules for each entity kind. A kind without rules
// keeps every entity.
type Config struct {
	Nodes     *Rules `yaml:"nodes,omitempty"`
	Ways      *Rules `yaml:"ways,omitempty"`
	Relations *Rules `yaml:"relations,omitempty"`
}

// Rules defines which entities of one kind are kept
type Rules struct {
	// Include keeps only entities with at least one listed key. An empty
	// value list matches any value, "*" does too.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude drops entities with a listed key/value. Applied after Include.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny drops entities that carry none of these keys
	RequireAny []string `yaml:"require_any,omitempty"`
	// DropUntagged drops entities without any tag
	DropUntagged bool `yaml:"drop_untagged,omitempty"`
}

// LoadConfig loads a filter configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag filter file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML filter document
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tag filter YAML: %w", err)
	}
	return &cfg, nil
}

// Filter applies a Config to decoded entities
type Filter struct {
	nodes, ways, relations *Rules
}

// NewFilter creates a filter from configuration. A nil cfg keeps
// everything.
func NewFilter(cfg *Config) *Filter {
	if cfg == nil {
		return &Filter{}
	}
	return &Filter{nodes: cfg.Nodes, ways: cfg.Ways, relations: cfg.Relations}
}

// Keep reports whether e passes the rules for its kind
func (f *Filter) Keep(e pbf.Entity) bool {
	switch e.Type() {
	case pbf.TypeNode:
		return f.nodes.Match(e.EntityTags())
	case pbf.TypeWay:
		return f.ways.Match(e.EntityTags())
	case pbf.TypeRelation:
		return f.relations.Match(e.EntityTags())
	}
	return true
}

// HasFilter returns true if any kind has rules
func (f *Filter) HasFilter() bool {
	return f.nodes.active() || f.ways.active() || f.relations.active()
}

func (r *Rules) active() bool {
	if r == nil {
		return false
	}
	return r.DropUntagged || len(r.Include) > 0 || len(r.Exclude) > 0 || len(r.RequireAny) > 0
}

// Match checks if the given tags pass the rules.
// A nil Rules matches everything.
func (r *Rules) Match(tags pbf.Tags) bool {
	if r == nil {
		return true
	}

	if r.DropUntagged && len(tags) == 0 {
		return false
	}

	if len(r.RequireAny) > 0 {
		found := false
		for _, key := range r.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(r.Include) > 0 {
		matched := false
		for key, values := range r.Include {
			if value, ok := tags[key]; ok && valueListed(values, value) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for key, values := range r.Exclude {
		if value, ok := tags[key]; ok && valueListed(values, value) {
			return false
		}
	}

	return true
}

// valueListed treats an empty list as "any value"
func valueListed(values []string, value string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == value || v == "*" {
			return true
		}
	}
	return false
}
