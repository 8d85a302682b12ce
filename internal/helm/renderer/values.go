package renderer

import (
	"fmt"
	"os"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/strvals"

	"github.com/stolostron/installer-dev-tools-sub000/internal/maputil"
)

// ValuesOptions configures how user-supplied values are merged.
type ValuesOptions struct {
	// ValueFiles is a list of YAML files to merge (last wins).
	ValueFiles []string

	// Values is a list of key=value pairs (dotted paths for nested values).
	Values []string

	// StringValues is a list of key=value pairs forced to string type.
	StringValues []string
}

// MergeValues merges chart defaults with user-supplied overrides following
// Helm conventions: chart defaults < value files < --set/--set-string. The
// chart's own Values map is never modified.
//
// Overrides are parsed into a fresh tree and coalesced over the defaults, so
// a key may be set below a default that is null.
func MergeValues(ch *chart.Chart, vopts ValuesOptions) (map[string]interface{}, error) {
	base := maputil.DeepCopyMap(ch.Values)
	if base == nil {
		base = make(map[string]interface{})
	}

	for _, f := range vopts.ValueFiles {
		data, err := os.ReadFile(f) //nolint:gosec // f is a user-provided values file path
		if err != nil {
			return nil, fmt.Errorf("reading values file %q: %w", f, err)
		}

		fileVals, err := chartutil.ReadValues(data)
		if err != nil {
			return nil, fmt.Errorf("parsing values file %q: %w", f, err)
		}

		base = chartutil.CoalesceTables(fileVals, base)
	}

	overrides := make(map[string]interface{})

	for _, v := range vopts.Values {
		if err := strvals.ParseInto(v, overrides); err != nil {
			return nil, fmt.Errorf("parsing --set %q: %w", v, err)
		}
	}

	for _, v := range vopts.StringValues {
		if err := strvals.ParseIntoString(v, overrides); err != nil {
			return nil, fmt.Errorf("parsing --set-string %q: %w", v, err)
		}
	}

	if len(overrides) == 0 {
		return base, nil
	}

	return chartutil.CoalesceTables(overrides, base), nil
}
