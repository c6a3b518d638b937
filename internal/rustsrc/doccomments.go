package rustsrc

import (
	"strings"
)

// commentKind classifies a comment by its leading marker.
type commentKind int

const (
	plainComment commentKind = iota
	outerDoc                 // /// or /** */
	innerDoc                 // //! or /*! */
)

// classifyComment returns the doc kind of a line_comment or block_comment and
// its text with markers removed.
func classifyComment(text string) (commentKind, string) {
	text = strings.TrimRight(text, "\r\n")
	switch {
	case strings.HasPrefix(text, "////"):
		return plainComment, ""
	case strings.HasPrefix(text, "///"):
		return outerDoc, text[3:]
	case strings.HasPrefix(text, "//!"):
		return innerDoc, text[3:]
	case strings.HasPrefix(text, "/***"), text == "/**/":
		return plainComment, ""
	case strings.HasPrefix(text, "/**"):
		return outerDoc, blockBody(text[3:])
	case strings.HasPrefix(text, "/*!"):
		return innerDoc, blockBody(text[3:])
	}
	return plainComment, ""
}

// blockBody strips the closing marker and the decorative " * " column that
// block doc comments usually carry.
func blockBody(text string) string {
	text = strings.TrimSuffix(text, "*/")
	lines := strings.Split(text, "\n")

	starred := true
	for _, l := range lines[1:] {
		t := strings.TrimSpace(l)
		if t != "" && !strings.HasPrefix(t, "*") {
			starred = false
			break
		}
	}
	if starred {
		for i := 1; i < len(lines); i++ {
			t := strings.TrimLeft(lines[i], " \t")
			lines[i] = strings.TrimPrefix(t, "*")
		}
	}

	// Drop the blank first and last lines left by /** and */ on their own lines.
	if strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// docBuilder accumulates the fragments of one doc comment.
type docBuilder struct {
	lines []string
}

func (d *docBuilder) add(fragment string) {
	d.lines = append(d.lines, strings.Split(fragment, "\n")...)
}

func (d *docBuilder) reset() {
	d.lines = d.lines[:0]
}

func (d *docBuilder) empty() bool {
	return len(d.lines) == 0
}

// String joins the fragments and removes the indentation common to all
// non-blank lines.
func (d *docBuilder) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	indent := -1
	for _, l := range d.lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, len(d.lines))
	for i, l := range d.lines {
		if len(l) >= indent && indent > 0 {
			l = l[indent:]
		}
		out[i] = strings.TrimRight(l, " \t")
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
