package config

import (
	"fmt"
	"os"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"
)

// Size tier names, in the order they are rendered.
const (
	TierSmall      = "Small"
	TierMedium     = "Medium"
	TierLarge      = "Large"
	TierExtraLarge = "ExtraLarge"
)

// Tiers lists every hub size tier.
var Tiers = []string{TierSmall, TierMedium, TierLarge, TierExtraLarge}

// Sizes is the per-deployment container size table.
type Sizes struct {
	Deployments []SizedDeployment `json:"deployments"`
}

// SizedDeployment lists the sized containers of one Deployment.
type SizedDeployment struct {
	Name       string           `json:"name"`
	Containers []SizedContainer `json:"containers"`
}

// SizedContainer holds the resources of one container per tier.
type SizedContainer struct {
	Name       string        `json:"name"`
	Small      *ResourceTier `json:"Small,omitempty"`
	Medium     *ResourceTier `json:"Medium,omitempty"`
	Large      *ResourceTier `json:"Large,omitempty"`
	ExtraLarge *ResourceTier `json:"ExtraLarge,omitempty"`
}

// ResourceTier is a limits/requests pair.
type ResourceTier struct {
	Limits   Quantities `json:"limits"`
	Requests Quantities `json:"requests"`
}

// Quantities are cpu and memory quantity strings.
type Quantities struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// LoadSizes reads a standalone size table file.
func LoadSizes(path string) (*Sizes, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied path is intentional
	if err != nil {
		return nil, fmt.Errorf("reading sizes %q: %w", path, err)
	}

	var s Sizes
	if err := sigsyaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sizes %q: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks that every entry is named.
func (s *Sizes) Validate() error {
	for i, d := range s.Deployments {
		if d.Name == "" {
			return fmt.Errorf("sizes.deployments[%d]: name is required", i)
		}

		for j, c := range d.Containers {
			if c.Name == "" {
				return fmt.Errorf("sizes.deployments[%d].containers[%d]: name is required", i, j)
			}
		}
	}

	return nil
}

// Deployment returns the size entry for the named Deployment, or nil.
func (s *Sizes) Deployment(name string) *SizedDeployment {
	if s == nil {
		return nil
	}

	for i := range s.Deployments {
		if s.Deployments[i].Name == name {
			return &s.Deployments[i]
		}
	}

	return nil
}

// Container returns the size entry for the named container, or nil.
func (d *SizedDeployment) Container(name string) *SizedContainer {
	if d == nil {
		return nil
	}

	for i := range d.Containers {
		if d.Containers[i].Name == name {
			return &d.Containers[i]
		}
	}

	return nil
}

// Tier returns the resources of the named tier, or nil when absent.
func (c *SizedContainer) Tier(name string) *ResourceTier {
	switch name {
	case TierSmall:
		return c.Small
	case TierMedium:
		return c.Medium
	case TierLarge:
		return c.Large
	case TierExtraLarge:
		return c.ExtraLarge
	default:
		return nil
	}
}

// Complete reports whether every quantity of the tier is set.
func (r *ResourceTier) Complete() bool {
	return r != nil &&
		r.Limits.CPU != "" && r.Limits.Memory != "" &&
		r.Requests.CPU != "" && r.Requests.Memory != ""
}

// SizeGap describes a sized container without complete resources.
type SizeGap struct {
	Deployment string
	Container  string

	// Tiers lists the incomplete tiers. Empty means the container has no
	// size entry at all.
	Tiers []string
}

func (g SizeGap) String() string {
	if len(g.Tiers) == 0 {
		return fmt.Sprintf("%s/%s: no size entry", g.Deployment, g.Container)
	}

	return fmt.Sprintf("%s/%s: missing %s", g.Deployment, g.Container, strings.Join(g.Tiers, ", "))
}

// MissingSizeTierError lists every container whose size tiers cannot be
// rendered.
type MissingSizeTierError struct {
	Gaps []SizeGap
}

func (e *MissingSizeTierError) Error() string {
	parts := make([]string, 0, len(e.Gaps))
	for _, g := range e.Gaps {
		parts = append(parts, g.String())
	}

	return "incomplete container sizes: " + strings.Join(parts, "; ")
}

// Gap checks the named container of d. It returns nil when every tier is
// complete.
func (d *SizedDeployment) Gap(container string) *SizeGap {
	c := d.Container(container)
	if c == nil {
		name := ""
		if d != nil {
			name = d.Name
		}

		return &SizeGap{Deployment: name, Container: container}
	}

	var missing []string

	for _, tier := range Tiers {
		if !c.Tier(tier).Complete() {
			missing = append(missing, tier)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	return &SizeGap{Deployment: d.Name, Container: container, Tiers: missing}
}
