// Package flowctl injects Helm control flow into serialized resources.
//
// Control flow cannot be represented in a YAML tree, so it is added to the
// rendered text as the last step. Edits are collected against the original
// line indices and applied in a single pass.
package flowctl

import "strings"

// Lines is the text of one serialized document, split into lines without
// their terminators.
type Lines struct {
	lines []string
}

// NewLines splits text into lines. A trailing newline does not produce an
// empty last line.
func NewLines(text string) *Lines {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return &Lines{}
	}

	return &Lines{lines: strings.Split(text, "\n")}
}

// Len returns the number of lines.
func (l *Lines) Len() int {
	return len(l.lines)
}

// At returns line i.
func (l *Lines) At(i int) string {
	return l.lines[i]
}

// String joins the lines with a trailing newline.
func (l *Lines) String() string {
	if len(l.lines) == 0 {
		return ""
	}

	return strings.Join(l.lines, "\n") + "\n"
}

// Editor accumulates span edits against a fixed Lines value.
type Editor struct {
	src      *Lines
	before   map[int][]string
	after    map[int][]string
	replaced map[int][]string
}

// NewEditor returns an editor over src. src is never modified.
func NewEditor(src *Lines) *Editor {
	return &Editor{
		src:      src,
		before:   map[int][]string{},
		after:    map[int][]string{},
		replaced: map[int][]string{},
	}
}

// Replace substitutes line i with block.
func (e *Editor) Replace(i int, block ...string) {
	e.replaced[i] = block
}

// Wrap brackets lines first..last (inclusive) with open and closing. A
// later Wrap of the same span encloses an earlier one.
func (e *Editor) Wrap(first, last int, open, closing string) {
	e.before[first] = append([]string{open}, e.before[first]...)
	e.after[last] = append(e.after[last], closing)
}

// Apply returns the edited lines.
func (e *Editor) Apply() *Lines {
	out := make([]string, 0, e.src.Len())

	for i, line := range e.src.lines {
		out = append(out, e.before[i]...)

		if block, ok := e.replaced[i]; ok {
			out = append(out, block...)
		} else {
			out = append(out, line)
		}

		out = append(out, e.after[i]...)
	}

	return &Lines{lines: out}
}

// indentOf returns the leading spaces of line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " "))]
}
