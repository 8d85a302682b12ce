// Package yamlutil provides shared YAML document helpers.
package yamlutil

import (
	"bytes"
	"regexp"
	"strings"
)

// docSeparator matches YAML document separators: a line containing only "---"
// optionally followed by whitespace.
var docSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// SplitDocuments splits a multi-document YAML byte slice into individual
// documents, filtering out empty ones. Each returned slice is a raw YAML
// document without the leading "---" separator.
func SplitDocuments(data []byte) [][]byte {
	parts := docSeparator.Split(string(data), -1)

	var docs [][]byte

	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			docs = append(docs, []byte(part))
		}
	}

	return docs
}

// JoinDocuments concatenates documents into one multi-document stream.
func JoinDocuments(docs [][]byte) []byte {
	var buf bytes.Buffer

	for i, doc := range docs {
		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(doc)

		if len(doc) > 0 && doc[len(doc)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}
