// Package markdown holds the markdown handling shared by the sidebar
// renderers: summary extraction from doc comments and front matter.
package markdown

import (
	"strings"
	"unicode"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// Dollar signs, "Term\n: def" lines and "{#id}" suffixes are plain text in
// rustdoc.
const summaryExtensions = gmparser.CommonExtensions &^
	(gmparser.Autolink | gmparser.MathJax | gmparser.DefinitionLists | gmparser.HeadingIDs)

// SummaryLine returns the one-line summary of a doc comment: the text of its
// first paragraph (or leading heading) with line breaks and whitespace runs
// in text folded into single spaces. Inline code is kept verbatim with its
// backticks; links keep their text but lose the destination; emphasis markers
// are dropped. A doc led by a list, table or code block has no summary.
func SummaryLine(docs string) string {
	docs = strings.TrimSpace(docs)
	if docs == "" {
		return ""
	}

	doc := gm.Parse([]byte(docs), gmparser.NewWithExtensions(summaryExtensions))

	// Only the leading block counts; a doc starting with a code block has no
	// summary.
	children := doc.GetChildren()
	if len(children) == 0 {
		return ""
	}
	first := children[0]
	switch first.(type) {
	case *ast.Paragraph, *ast.Heading:
	default:
		return ""
	}

	var b strings.Builder
	ast.WalkFunc(first, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Code:
			b.WriteString("`")
			b.Write(n.Literal)
			b.WriteString("`")
		case *ast.Softbreak, *ast.Hardbreak:
			writeSpace(&b)
		case *ast.HTMLSpan:
		case *ast.Text:
			for _, r := range string(n.Literal) {
				if unicode.IsSpace(r) {
					writeSpace(&b)
				} else {
					b.WriteRune(r)
				}
			}
		}
		return ast.GoToNext
	})

	return strings.TrimSpace(b.String())
}

func writeSpace(b *strings.Builder) {
	if s := b.String(); s != "" && s[len(s)-1] != ' ' {
		b.WriteByte(' ')
	}
}
