// Package registry maps (platform, content kind) to the ordered strategy
// descriptors the resolver runs, and carries the per-platform normalization
// policy.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/samber/lo"
)

// Mode is how a group of strategies runs
type Mode string

const (
	// Race runs every strategy of the group concurrently; first viable wins
	Race Mode = "race"
	// Sequential runs strategies one by one in priority order
	Sequential Mode = "sequential"
)

// Descriptor is the static configuration of one strategy
type Descriptor struct {
	Name string
	Mode Mode

	// Group splits adjacent descriptors that share a mode into separate groups
	Group string

	// Timeout is a hard ceiling for one attempt
	Timeout time.Duration

	// Priority orders descriptors within a lookup; lower runs first
	Priority int

	Platforms []media.Platform
	Kinds     []media.ContentKind
}

// Applies reports whether d handles the platform/kind pair
func (d Descriptor) Applies(platform media.Platform, kind media.ContentKind) bool {
	return slices.Contains(d.Platforms, platform) && slices.Contains(d.Kinds, kind)
}

// Policy drives normalization per platform
type Policy struct {
	// CollapseSingle keeps only the best asset of a single-item result
	CollapseSingle bool

	// DefaultTitle is used when the adapter reports none
	DefaultTitle string

	// DefaultUploader is used when the adapter reports none
	DefaultUploader string
}

// Registry is immutable after construction and safe for concurrent use
type Registry struct {
	descriptors []Descriptor
	policies    map[media.Platform]Policy
}

// New creates a registry. Registration order breaks priority ties.
func New(descriptors []Descriptor, policies map[media.Platform]Policy) (*Registry, error) {
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("descriptor without name")
		}
		if d.Mode != Race && d.Mode != Sequential {
			return nil, fmt.Errorf("strategy %s: invalid mode %q", d.Name, d.Mode)
		}
		if d.Timeout <= 0 {
			return nil, fmt.Errorf("strategy %s: timeout must be positive", d.Name)
		}
	}

	r := &Registry{
		descriptors: slices.Clone(descriptors),
		policies:    make(map[media.Platform]Policy, len(policies)),
	}
	for p, pol := range policies {
		r.policies[p] = pol
	}
	return r, nil
}

// Lookup returns the descriptors for platform/kind ordered by priority, then
// registration order. An empty result means no strategy is applicable.
func (r *Registry) Lookup(platform media.Platform, kind media.ContentKind) []Descriptor {
	matched := lo.Filter(r.descriptors, func(d Descriptor, _ int) bool {
		return d.Applies(platform, kind)
	})
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched
}

// Policy returns the normalization policy for platform. Unknown platforms
// get collapse off and a generic title.
func (r *Registry) Policy(platform media.Platform) Policy {
	if p, ok := r.policies[platform]; ok {
		return p
	}
	return genericPolicy(platform)
}

func genericPolicy(platform media.Platform) Policy {
	return Policy{
		DefaultTitle:    platform.DisplayName() + " Media",
		DefaultUploader: platform.DisplayName(),
	}
}

// Descriptors returns every registered descriptor in registration order
func (r *Registry) Descriptors() []Descriptor {
	return slices.Clone(r.descriptors)
}

// Names returns the distinct strategy names in registration order
func (r *Registry) Names() []string {
	return lo.Uniq(lo.Map(r.descriptors, func(d Descriptor, _ int) string { return d.Name }))
}

// FromConfig builds a registry from a strategies.yml table. Policies not
// overridden keep their defaults. A nil config yields the default registry.
func FromConfig(cfg *config.StrategiesConfig) (*Registry, error) {
	if cfg == nil {
		return Default(), nil
	}

	descriptors := DefaultDescriptors()
	if len(cfg.Strategies) > 0 {
		descriptors = lo.Map(cfg.Strategies, func(s config.StrategySpec, _ int) Descriptor {
			return Descriptor{
				Name:      s.Name,
				Mode:      Mode(s.Mode),
				Group:     s.Group,
				Timeout:   s.Timeout,
				Priority:  s.Priority,
				Platforms: lo.Map(s.Platforms, func(p string, _ int) media.Platform { return media.Platform(p) }),
				Kinds:     lo.Map(s.Kinds, func(k string, _ int) media.ContentKind { return media.ContentKind(k) }),
			}
		})
	}

	policies := DefaultPolicies()
	for name, spec := range cfg.Policies {
		platform := media.Platform(name)
		pol, ok := policies[platform]
		if !ok {
			pol = genericPolicy(platform)
		}
		if spec.CollapseSingle != nil {
			pol.CollapseSingle = *spec.CollapseSingle
		}
		if spec.Title != "" {
			pol.DefaultTitle = spec.Title
		}
		if spec.Uploader != "" {
			pol.DefaultUploader = spec.Uploader
		}
		policies[platform] = pol
	}

	return New(descriptors, policies)
}

// ToConfig renders the registry as a strategies.yml table
func (r *Registry) ToConfig() *config.StrategiesConfig {
	cfg := &config.StrategiesConfig{
		Policies: make(map[string]config.PolicySpec, len(r.policies)),
	}
	for _, d := range r.descriptors {
		cfg.Strategies = append(cfg.Strategies, config.StrategySpec{
			Name:      d.Name,
			Mode:      string(d.Mode),
			Group:     d.Group,
			Timeout:   d.Timeout,
			Priority:  d.Priority,
			Platforms: lo.Map(d.Platforms, func(p media.Platform, _ int) string { return string(p) }),
			Kinds:     lo.Map(d.Kinds, func(k media.ContentKind, _ int) string { return string(k) }),
		})
	}
	for p, pol := range r.policies {
		collapse := pol.CollapseSingle
		cfg.Policies[string(p)] = config.PolicySpec{
			CollapseSingle: &collapse,
			Title:          pol.DefaultTitle,
			Uploader:       pol.DefaultUploader,
		}
	}
	return cfg
}
