package plan

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into a Catalog.
type Source interface {
	Load(ctx context.Context) (map[ID]Plan, error)
}

// DefaultPlans returns the built-in plan set used when no plans file is configured.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: Base, Name: "Base", MaxMemorials: 1},
		{ID: Extended, Name: "Extended", MaxMemorials: 10, TrialGated: true},
		{ID: Unlimited, Name: "Unlimited", MaxMemorials: NoLimit, TrialGated: true},
	}
}

// WithPriceIDs returns a copy of plans with PriceID set from prices.
// Plans missing from prices keep their PriceID.
func WithPriceIDs(plans []Plan, prices map[ID]string) []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		if price, ok := prices[p.ID]; ok && price != "" {
			p.PriceID = price
		}
		out[i] = p
	}
	return out
}

type inMemSource struct {
	mu    sync.RWMutex
	plans map[ID]Plan
}

// NewInMemSource returns a Source holding a copy of the given plans.
// Panics if no plans are provided so the catalog always has something to serve.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) < 1 {
		panic("plan: at least one plan is required")
	}
	m := make(map[ID]Plan, len(plans))
	for _, p := range plans {
		m[p.ID] = p
	}
	return &inMemSource{plans: m}
}

func (s *inMemSource) Load(ctx context.Context) (map[ID]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[ID]Plan, len(s.plans))
	for id, p := range s.plans {
		out[id] = p
	}
	return out, nil
}

type yamlFile struct {
	Plans []Plan `yaml:"plans"`
}

type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source that reads plans from a YAML file at path.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[ID]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", s.path, err)
	}
	return parseYAML(raw)
}

func parseYAML(raw []byte) (map[ID]Plan, error) {
	var f yamlFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	out := make(map[ID]Plan, len(f.Plans))
	for _, p := range f.Plans {
		if _, dup := out[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidPlanConfiguration, p.ID)
		}
		out[p.ID] = p
	}
	return out, nil
}
