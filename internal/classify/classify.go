// Package classify groups bundle documents by kind and rejects kinds the
// chartifier does not know how to handle.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

// UnsupportedKindError lists every kind outside the allow-list together with
// the files that declared them.
type UnsupportedKindError struct {
	// AllowListVersion is the version of the list that was consulted.
	AllowListVersion string

	// Kinds are the distinct offending kinds, sorted.
	Kinds []string

	// Sources maps each offending kind to its source files, in read order.
	Sources map[string][]string
}

func (e *UnsupportedKindError) Error() string {
	parts := make([]string, 0, len(e.Kinds))
	for _, kind := range e.Kinds {
		parts = append(parts, fmt.Sprintf("%s (%s)", kind, strings.Join(e.Sources[kind], ", ")))
	}

	return fmt.Sprintf("unsupported kinds for allow-list %s: %s", e.AllowListVersion, strings.Join(parts, "; "))
}

// Classify buckets resources by kind in read order. Documents without a kind
// are skipped with a warning; the ClusterServiceVersion itself is never
// expected here and counts as unsupported.
func Classify(ctx context.Context, resources []*k8s.Resource, allow *config.KindAllowList) (*k8s.Table, error) {
	logger := logging.FromContext(ctx)

	if allow == nil {
		allow = config.DefaultAllowList()
	}

	table := k8s.NewTable()

	var unsupported *UnsupportedKindError

	for _, r := range resources {
		kind := r.Kind()

		if kind == "" {
			logger.Warn("skipping document without kind", slog.String("source", r.SourcePath))
			continue
		}

		if !allow.Allows(kind) {
			if unsupported == nil {
				unsupported = &UnsupportedKindError{
					AllowListVersion: allow.Version,
					Sources:          map[string][]string{},
				}
			}

			if _, seen := unsupported.Sources[kind]; !seen {
				unsupported.Kinds = append(unsupported.Kinds, kind)
			}

			if !slices.Contains(unsupported.Sources[kind], r.SourcePath) {
				unsupported.Sources[kind] = append(unsupported.Sources[kind], r.SourcePath)
			}

			continue
		}

		table.Add(r)
	}

	if unsupported != nil {
		sort.Strings(unsupported.Kinds)
		return nil, unsupported
	}

	logger.Debug("classified resources", slog.Int("resources", table.Len()), slog.Int("kinds", len(table.Kinds())))

	return table, nil
}
