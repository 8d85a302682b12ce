package flowctl

import (
	"fmt"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
)

const (
	endBlock = "{{- end }}"

	// resourcesAnchorPrefix precedes the container name in a sized
	// container's resources placeholder.
	resourcesAnchorPrefix = "resources: REPLACE-"

	seccompCondition = `semverCompare ">=4.11.0" .Values.hubconfig.ocpVersion`
	ocpCondition     = ".Values.global.deployOnOCP"
)

// Options selects the optional injections for one Deployment.
type Options struct {
	// Sizes is the size entry of the Deployment, or nil.
	Sizes *config.SizedDeployment

	// Deployment names the document in size errors.
	Deployment string

	// Replicas templates spec.replicas from hubconfig.replicaCount.
	Replicas bool

	// DeployOnOCP additionally gates the pod seccomp profile on
	// global.deployOnOCP.
	DeployOnOCP bool

	// PullSecretOverride passes the pull secret to add-on agents through
	// an AGENT_IMAGE_PULL_SECRET environment variable.
	PullSecretOverride bool
}

// Inject expands the empty anchors a standardized Deployment carries into
// Helm control flow. Incomplete size entries for any sized container are
// collected into a *config.MissingSizeTierError.
func Inject(src *Lines, opts Options) (*Lines, error) {
	ed := NewEditor(src)

	var gaps []config.SizeGap

	for i := 0; i < src.Len(); i++ {
		line := src.At(i)
		trimmed := strings.TrimSpace(line)
		ind := indentOf(line)

		switch {
		case isEmptyAnchor(trimmed, "nodeSelector"):
			ed.Replace(i, nodeSelectorBlock(ind)...)
		case isEmptyAnchor(trimmed, "imagePullSecrets"):
			ed.Replace(i, imagePullSecretsBlock(ind)...)
		case isEmptyAnchor(trimmed, "tolerations"):
			ed.Replace(i, tolerationsBlock(ind)...)
		case isEnvAnchor(trimmed):
			ed.Replace(i, envBlock(src, i, opts.PullSecretOverride)...)
		case opts.Replicas && strings.HasPrefix(trimmed, "replicas:"):
			ed.Replace(i, ind+"replicas: {{ .Values.hubconfig.replicaCount }}")
		case strings.HasPrefix(trimmed, resourcesAnchorPrefix):
			container := strings.TrimPrefix(trimmed, resourcesAnchorPrefix)

			if gap := opts.Sizes.Gap(container); gap != nil {
				if gap.Deployment == "" {
					gap.Deployment = opts.Deployment
				}

				gaps = append(gaps, *gap)

				continue
			}

			ed.Replace(i, resourcesBlock(ind, opts.Sizes.Container(container))...)
		case trimmed == "seccompProfile:" && i+1 < src.Len() && strings.TrimSpace(src.At(i+1)) == "type: RuntimeDefault":
			ed.Wrap(i, i+1, "{{- if "+seccompCondition+" }}", endBlock)

			if opts.DeployOnOCP {
				ed.Wrap(i, i+1, "{{- if "+ocpCondition+" }}", endBlock)
			}
		}
	}

	if len(gaps) > 0 {
		return nil, &config.MissingSizeTierError{Gaps: gaps}
	}

	return ed.Apply(), nil
}

// isEmptyAnchor matches "key: ''" and "key: \"\"".
func isEmptyAnchor(trimmed, key string) bool {
	return trimmed == key+`: ''` || trimmed == key+`: ""`
}

// isEnvAnchor matches an env key that is empty or followed by its items.
// The key may open a list item when it sorts first in a container.
func isEnvAnchor(trimmed string) bool {
	trimmed = strings.TrimPrefix(trimmed, "- ")
	return trimmed == "env:" || trimmed == "env: {}"
}

func nodeSelectorBlock(ind string) []string {
	return []string{
		"{{- with .Values.hubconfig.nodeSelector }}",
		ind + "nodeSelector:",
		fmt.Sprintf("{{ toYaml . | indent %d }}", len(ind)+2),
		endBlock,
	}
}

func imagePullSecretsBlock(ind string) []string {
	return []string{
		"{{- if .Values.global.pullSecret }}",
		ind + "imagePullSecrets:",
		ind + "- name: {{ .Values.global.pullSecret }}",
		endBlock,
	}
}

func tolerationsBlock(ind string) []string {
	return []string{
		"{{- with .Values.hubconfig.tolerations }}",
		ind + "tolerations:",
		ind + "{{- range . }}",
		ind + "- {{ if .Key }} key: {{ .Key }} {{- end }}",
		ind + "  {{ if .Operator }} operator: {{ .Operator }} {{- end }}",
		ind + "  {{ if .Value }} value: {{ .Value }} {{- end }}",
		ind + "  {{ if .Effect }} effect: {{ .Effect }} {{- end }}",
		ind + "  {{ if .TolerationSeconds }} tolerationSeconds: {{ .TolerationSeconds }} {{- end }}",
		ind + "  {{- end }}",
		endBlock,
	}
}

// envBlock rewrites the env anchor at line i. Injected items use the
// indentation of existing items, or two more spaces than the key.
func envBlock(src *Lines, i int, pullSecret bool) []string {
	line := src.At(i)
	trimmed := strings.TrimSpace(line)

	prefix := indentOf(line)
	if strings.HasPrefix(trimmed, "- ") {
		prefix += "- "
	}

	item := strings.Repeat(" ", len(prefix)) + "  "

	if strings.HasSuffix(trimmed, "env:") && i+1 < src.Len() {
		if next := src.At(i + 1); strings.HasPrefix(strings.TrimSpace(next), "- ") {
			item = indentOf(next)
		}
	}

	block := []string{
		prefix + "env:",
		"{{- if .Values.hubconfig.proxyConfigs }}",
	}

	for _, name := range []string{"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY"} {
		block = append(block,
			item+"- name: "+name,
			item+"  value: {{ .Values.hubconfig.proxyConfigs."+name+" }}",
		)
	}

	block = append(block, endBlock)

	if pullSecret {
		block = append(block,
			"{{- if .Values.global.pullSecret }}",
			item+"- name: AGENT_IMAGE_PULL_SECRET",
			item+"  value: {{ .Values.global.pullSecret }}",
			endBlock,
		)
	}

	return block
}

func resourcesBlock(ind string, c *config.SizedContainer) []string {
	block := []string{ind + "resources:"}

	for _, tier := range config.Tiers {
		r := c.Tier(tier)
		block = append(block,
			fmt.Sprintf(`{{- if eq .Values.hubconfig.hubSize %q }}`, tier),
			ind+"  limits:",
			ind+"    cpu: "+r.Limits.CPU,
			ind+"    memory: "+r.Limits.Memory,
			ind+"  requests:",
			ind+"    cpu: "+r.Requests.CPU,
			ind+"    memory: "+r.Requests.Memory,
			endBlock,
		)
	}

	return block
}
