package k8s

import "strings"

// DefaultRegistry is reported for references without a registry prefix.
const DefaultRegistry = "localhost"

// ImageRef is a parsed container image reference of the form
// [registry[/namespace]/]repository[:tag][@digest].
//
// Tag and Digest are nil when absent. Repository never contains '/', ':'
// or '@'.
type ImageRef struct {
	Registry   string
	Namespace  string
	Repository string
	Tag        *string
	Digest     *string
}

// ParseImageRef splits ref into its parts. It never fails: malformed input
// yields an ImageRef with whatever parts could be recognised.
func ParseImageRef(ref string) ImageRef {
	var out ImageRef

	rest := ref

	// Digests never contain '@', so the first one starts the digest.
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		if at > 0 {
			d := rest[at+1:]
			out.Digest = &d
		}

		rest = rest[:at]
	}

	prefix := ""
	last := rest

	if slash := strings.LastIndexByte(rest, '/'); slash >= 0 {
		prefix = rest[:slash]
		last = rest[slash+1:]
	}

	// Only a colon in the final segment separates a tag; an earlier one is
	// a registry port.
	if colon := strings.IndexByte(last, ':'); colon >= 0 {
		if colon > 0 {
			tag := last[colon+1:]
			out.Tag = &tag
		}

		last = last[:colon]
	}

	out.Repository = last
	out.Registry, out.Namespace = splitRegistry(prefix)

	return out
}

func splitRegistry(prefix string) (registry, namespace string) {
	if prefix == "" {
		return DefaultRegistry, ""
	}

	if slash := strings.IndexByte(prefix, '/'); slash > 0 {
		return prefix[:slash], prefix[slash+1:]
	}

	return prefix, ""
}

// String reassembles the reference.
func (r ImageRef) String() string {
	var b strings.Builder

	if r.Registry != "" && r.Registry != DefaultRegistry {
		b.WriteString(r.Registry)
		b.WriteByte('/')
	}

	if r.Namespace != "" {
		b.WriteString(r.Namespace)
		b.WriteByte('/')
	}

	b.WriteString(r.Repository)

	if r.Tag != nil {
		b.WriteByte(':')
		b.WriteString(*r.Tag)
	}

	if r.Digest != nil {
		b.WriteByte('@')
		b.WriteString(*r.Digest)
	}

	return b.String()
}

// IsTemplated returns true if s already holds a Helm template expression.
func IsTemplated(s string) bool {
	return strings.Contains(s, "{{")
}
