package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/stolostron/installer-dev-tools-sub000/internal/bundle"
	"github.com/stolostron/installer-dev-tools-sub000/internal/chartify"
	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/gate"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

type inspectOptions struct {
	targetFile string
	branch     string
	format     string
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <bundle-dir>",
		Short: "Inspect a bundle without converting it",
		Long: `Inspect an operator bundle to preview a conversion: the resource kinds
and whether the allow-list accepts them, every container image with its
values key, the version gate decisions for the target branch, and the
stages that would run.

Unlike convert, inspect reports unsupported kinds and unmapped images
instead of failing on them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.targetFile, "target", "t", "", "target config file")
	f.StringVar(&opts.branch, "branch", "", "target release branch, overriding the target's branch")
	f.StringVar(&opts.format, "format", "table", "output format: table, json, yaml")

	return cmd
}

type inspectReport struct {
	Bundle    bundleInfo    `json:"bundle"`
	Branch    string        `json:"branch"`
	Resources []kindSummary `json:"resources"`
	Images    []imageUsage  `json:"images"`
	Gates     []gateResult  `json:"gates"`
	Stages    []string      `json:"stages"`
}

type bundleInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

type kindSummary struct {
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Allowed bool   `json:"allowed"`
}

type imageUsage struct {
	Resource   string `json:"resource"`
	Container  string `json:"container"`
	Image      string `json:"image"`
	Repository string `json:"repository"`
	Key        string `json:"key,omitempty"`
}

type gateResult struct {
	Name    string `json:"name"`
	Allowed bool   `json:"allowed"`
}

func runInspect(ctx context.Context, w io.Writer, bundleDir string, opts *inspectOptions) error {
	switch opts.format {
	case "table", "json", "yaml":
	default:
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("unsupported format %q: must be one of table, json, yaml", opts.format)}
	}

	tgt := &config.Target{}

	if opts.targetFile != "" {
		loaded, err := config.LoadTarget(opts.targetFile)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}

		tgt = loaded
	}

	if opts.branch != "" {
		tgt.Branch = opts.branch
	}

	b, err := bundle.Load(ctx, bundleDir, bundle.Options{ExtraPaths: tgt.WebhookPaths})
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("loading bundle: %w", err)}
	}

	report := buildReport(ctx, b, tgt)

	switch opts.format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case "yaml":
		data, err := sigsyaml.Marshal(report)
		if err != nil {
			return err
		}

		_, err = w.Write(data)

		return err
	default:
		return writeReportTable(w, report)
	}
}

func buildReport(ctx context.Context, b *bundle.Bundle, tgt *config.Target) *inspectReport {
	cfg := config.FromContext(ctx)

	g := gate.New(tgt.Branch,
		gate.WithReleaseVersion(cfg.ACMReleaseVersion),
		gate.WithBackplaneVersion(cfg.MCEReleaseVersion),
		gate.WithLogger(logging.FromContext(ctx)),
	)

	report := &inspectReport{
		Bundle: bundleInfo{
			Name:        b.CSV.Name,
			Version:     b.Version(),
			Description: b.Description(),
		},
		Branch: tgt.Branch,
		Stages: chartify.New(chartify.Options{Target: tgt, Gate: g}).Stages(),
	}

	allow := tgt.AllowList()
	counts := map[string]int{}

	for _, r := range b.Resources {
		counts[r.Kind()]++

		report.Images = append(report.Images, imagesOf(r.QualifiedName(), r.Kind(), r.Object.Object, tgt.ImageMappings)...)
	}

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	for _, kind := range kinds {
		report.Resources = append(report.Resources, kindSummary{Kind: kind, Count: counts[kind], Allowed: allow.Allows(kind)})
	}

	for _, entry := range []struct {
		name       string
		configured *gate.Threshold
		fallback   gate.Threshold
	}{
		{"namespaceTemplating", tgt.Gates.NamespaceTemplating, gate.NamespaceTemplating},
		{"securityContexts", tgt.Gates.SecurityContexts, gate.SecurityContexts},
		{"replicas", tgt.Gates.Replicas, gate.Replicas},
		{"deployOnOCP", tgt.Gates.DeployOnOCP, gate.DeployOnOCP},
	} {
		report.Gates = append(report.Gates, gateResult{
			Name:    entry.name,
			Allowed: g.Allows(tgt.Gates.Threshold(entry.configured, entry.fallback)),
		})
	}

	return report
}

// imagesOf lists the container images of a workload, descending into the
// manifests of an AddOnTemplate.
func imagesOf(resID, kind string, obj map[string]interface{}, mappings map[string]string) []imageUsage {
	if kind == k8s.KindAddOnTemplate {
		var out []imageUsage
		for _, m := range k8s.NestedManifests(obj) {
			out = append(out, imagesOf(resID, k8s.KindOf(m), m, mappings)...)
		}

		return out
	}

	if !k8s.IsWorkloadKind(kind) {
		return nil
	}

	podSpec := k8s.PodSpec(kind, obj)
	if podSpec == nil {
		return nil
	}

	var out []imageUsage

	for _, key := range k8s.ContainerKeys {
		for _, c := range k8s.Containers(podSpec, key) {
			image, _ := c["image"].(string)
			if image == "" {
				continue
			}

			name, _ := c["name"].(string)
			repo := k8s.ParseImageRef(image).Repository

			out = append(out, imageUsage{
				Resource:   resID,
				Container:  name,
				Image:      image,
				Repository: repo,
				Key:        mappings[repo],
			})
		}
	}

	return out
}

func writeReportTable(w io.Writer, r *inspectReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Bundle:\t%s\n", r.Bundle.Name)

	if r.Bundle.Version != "" {
		_, _ = fmt.Fprintf(tw, "Version:\t%s\n", r.Bundle.Version)
	}

	if r.Bundle.Description != "" {
		_, _ = fmt.Fprintf(tw, "Description:\t%s\n", r.Bundle.Description)
	}

	_, _ = fmt.Fprintf(tw, "Branch:\t%s\n", orNone(r.Branch))
	_, _ = fmt.Fprintf(tw, "Stages:\t%s\n", strings.Join(r.Stages, ", "))

	_, _ = fmt.Fprintln(tw, "\nKIND\tCOUNT\tALLOWED")

	for _, k := range r.Resources {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", k.Kind, k.Count, yesNo(k.Allowed))
	}

	_, _ = fmt.Fprintln(tw, "\nRESOURCE\tCONTAINER\tREPOSITORY\tKEY")

	for _, img := range r.Images {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", img.Resource, img.Container, img.Repository, orNone(img.Key))
	}

	_, _ = fmt.Fprintln(tw, "\nGATE\tALLOWED")

	for _, g := range r.Gates {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", g.Name, yesNo(g.Allowed))
	}

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}

	return s
}
