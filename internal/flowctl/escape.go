package flowctl

import "strings"

// EscapeVariables protects {{VAR}} placeholders meant for another templating
// layer by turning them into Helm string literals. Already escaped
// placeholders are left as they are.
func EscapeVariables(text string, variables []string) string {
	for _, v := range variables {
		raw := "{{" + v + "}}"
		escaped := "{{ `" + raw + "` }}"

		text = strings.ReplaceAll(text, escaped, raw)
		text = strings.ReplaceAll(text, raw, escaped)
	}

	return text
}
