// Package output serializes chart templates and writes them to their
// destinations.
//
//   - Serialization (serializer.go): block-style YAML with two-space
//     indentation, apiVersion/kind/metadata leading every document.
//
//   - Writers (writer.go): chart files keyed by chart-relative path go to
//     a [Writer]. [StreamWriter] lists them on one stream, [DirWriter]
//     places them below a directory.
package output
