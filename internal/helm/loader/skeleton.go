package loader

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	helmloader "helm.sh/helm/v3/pkg/chart/loader"
)

// SkeletonError reports a chart that cannot serve as a skeleton.
type SkeletonError struct {
	Chart  string
	Reason string
}

func (e *SkeletonError) Error() string {
	return fmt.Sprintf("chart %q is not a usable skeleton: %s", e.Chart, e.Reason)
}

// Validate checks that ch can receive generated templates and values: it
// must be an application chart without dependencies whose values.yaml
// carries a global mapping.
func Validate(ch *chart.Chart) error {
	name := ch.Name()

	if ch.Metadata != nil && ch.Metadata.Type == "library" {
		return &SkeletonError{Chart: name, Reason: "library charts cannot hold templates"}
	}

	if len(ch.Dependencies()) > 0 || (ch.Metadata != nil && len(ch.Metadata.Dependencies) > 0) {
		return &SkeletonError{Chart: name, Reason: "dependencies are not supported"}
	}

	if !hasRawValues(ch) {
		return &SkeletonError{Chart: name, Reason: "values.yaml is missing"}
	}

	if _, ok := ch.Values["global"].(map[string]interface{}); !ok {
		return &SkeletonError{Chart: name, Reason: "values.yaml has no global mapping"}
	}

	return nil
}

func hasRawValues(ch *chart.Chart) bool {
	for _, f := range ch.Raw {
		if f.Name == "values.yaml" {
			return true
		}
	}

	return false
}

// loadFS builds a chart from the files below root. Hidden files and
// directories are skipped.
func loadFS(fsys fs.FS, root string) (*chart.Chart, error) {
	var files []*helmloader.BufferedFile

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		rel := p
		if root != "." {
			rel = strings.TrimPrefix(p, root+"/")
		}

		files = append(files, &helmloader.BufferedFile{Name: path.Clean(rel), Data: data})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return helmloader.LoadFiles(files)
}
