// Package gate decides whether a version-dependent behavior applies to the
// release a chart is generated for.
//
// A target is either a branch name (main, release-2.12, backplane-2.7,
// release-ocm-2.13, ...) or a pinned ACM/MCE release. Every behavior carries
// a [Threshold] with one minimum per release line.
package gate

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Class is the release line a branch belongs to.
type Class int

// Branch classes, in the order they are matched.
const (
	ClassUnrecognized Class = iota
	ClassMain
	ClassReleaseOCM
	ClassRelease
	ClassBackplane
)

func (c Class) String() string {
	switch c {
	case ClassMain:
		return "main"
	case ClassReleaseOCM:
		return "release-ocm"
	case ClassRelease:
		return "release"
	case ClassBackplane:
		return "backplane"
	default:
		return "unrecognized"
	}
}

// Threshold holds the minimum version of each release line.
type Threshold struct {
	Release   string `json:"release"`
	Backplane string `json:"backplane"`
	OCM       string `json:"ocm"`

	// Strict makes main/master fail the gate instead of passing it.
	Strict bool `json:"strict,omitempty"`
}

// Validate checks that every minimum parses as a version.
func (t Threshold) Validate() error {
	for line, v := range map[string]string{"release": t.Release, "backplane": t.Backplane, "ocm": t.OCM} {
		if _, err := semver.NewVersion(v); err != nil {
			return fmt.Errorf("invalid %s minimum %q: %w", line, v, err)
		}
	}

	return nil
}

// Built-in thresholds.
var (
	SecurityContexts    = Threshold{Release: "2.10", Backplane: "2.5", OCM: "2.10"}
	NamespaceTemplating = Threshold{Release: "2.13", Backplane: "2.7", OCM: "2.13"}
	Replicas            = Threshold{Release: "9.9", Backplane: "9.9", OCM: "9.9", Strict: true}
	DeployOnOCP         = Threshold{Release: "9.9", Backplane: "2.7", OCM: "2.12"}
)

var versionPattern = regexp.MustCompile(`(\d+\.\d+)`)

// Classify returns the release line of branch. release-ocm is checked before
// release since every release-ocm branch also contains "release".
func Classify(branch string) Class {
	switch {
	case branch == "main" || branch == "master" || branch == "k8s-chart-fix":
		return ClassMain
	case strings.Contains(branch, "release-ocm"):
		return ClassReleaseOCM
	case strings.Contains(branch, "release"):
		return ClassRelease
	case strings.Contains(branch, "backplane") || strings.Contains(branch, "mce"):
		return ClassBackplane
	default:
		return ClassUnrecognized
	}
}

// Gate evaluates thresholds for one target.
type Gate struct {
	branch    string
	release   string
	backplane string
	logger    *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithReleaseVersion pins the ACM release version, bypassing branch parsing.
func WithReleaseVersion(v string) Option {
	return func(g *Gate) { g.release = v }
}

// WithBackplaneVersion pins the MCE release version, bypassing branch parsing.
func WithBackplaneVersion(v string) Option {
	return func(g *Gate) { g.backplane = v }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New returns a Gate for branch.
func New(branch string, opts ...Option) *Gate {
	g := &Gate{branch: branch, logger: slog.Default()}

	for _, o := range opts {
		o(g)
	}

	return g
}

// Allows reports whether the target meets t.
func (g *Gate) Allows(t Threshold) bool {
	if g.release != "" || g.backplane != "" {
		return g.allowsPinned(t)
	}

	class := Classify(g.branch)

	if class == ClassMain {
		return !t.Strict
	}

	m := versionPattern.FindString(g.branch)
	if m == "" {
		g.logger.Error("version not found in branch", slog.String("branch", g.branch))
		return false
	}

	var minimum string

	switch class {
	case ClassReleaseOCM:
		minimum = t.OCM
	case ClassRelease:
		minimum = t.Release
	case ClassBackplane:
		minimum = t.Backplane
	default:
		g.logger.Error("unrecognized branch type", slog.String("branch", g.branch))
		return false
	}

	return g.atLeast(m, minimum)
}

func (g *Gate) allowsPinned(t Threshold) bool {
	if g.release != "" && g.atLeast(g.release, t.Release) {
		return true
	}

	return g.backplane != "" && g.atLeast(g.backplane, t.Backplane)
}

func (g *Gate) atLeast(have, minimum string) bool {
	hv, err := semver.NewVersion(have)
	if err != nil {
		g.logger.Error("invalid target version", slog.String("version", have), slog.Any("error", err))
		return false
	}

	mv, err := semver.NewVersion(minimum)
	if err != nil {
		g.logger.Error("invalid minimum version", slog.String("version", minimum), slog.Any("error", err))
		return false
	}

	return !hv.LessThan(mv)
}
