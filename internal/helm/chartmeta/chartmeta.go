// Package chartmeta derives generated chart metadata from a bundle and
// applies it to a loaded skeleton.
package chartmeta

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"helm.sh/helm/v3/pkg/chart"
)

// ChartMeta holds the Chart.yaml fields the generator controls.
type ChartMeta struct {
	Name        string
	Version     string
	AppVersion  string
	Description string
}

// FromChart extracts metadata from a loaded Helm chart.
func FromChart(ch *chart.Chart) *ChartMeta {
	if ch == nil || ch.Metadata == nil {
		return &ChartMeta{}
	}

	return &ChartMeta{
		Name:        ch.Metadata.Name,
		Version:     ch.Metadata.Version,
		AppVersion:  ch.Metadata.AppVersion,
		Description: ch.Metadata.Description,
	}
}

// Apply writes the non-empty fields of m into ch's metadata. The version
// must be valid SemVer since Helm refuses to load the chart otherwise.
func (m *ChartMeta) Apply(ch *chart.Chart) error {
	if ch.Metadata == nil {
		ch.Metadata = &chart.Metadata{APIVersion: chart.APIVersionV2}
	}

	if m.Version != "" {
		if _, err := semver.StrictNewVersion(m.Version); err != nil {
			return fmt.Errorf("chart version %q: %w", m.Version, err)
		}

		ch.Metadata.Version = m.Version
	}

	if m.Name != "" {
		ch.Metadata.Name = m.Name
	}

	if m.AppVersion != "" {
		ch.Metadata.AppVersion = m.AppVersion
	}

	if m.Description != "" {
		ch.Metadata.Description = m.Description
	}

	return ch.Validate()
}
