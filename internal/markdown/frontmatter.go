package markdown

import (
	"fmt"
	"sort"
	"strings"
)

// AddFrontMatter prepends a YAML front-matter block with the given fields.
// Keys are sorted and fields with empty values are left out.
func AddFrontMatter(src string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return src
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, quoteYAML(fields[k]))
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}

// quoteYAML quotes values that YAML would otherwise misread.
func quoteYAML(v string) string {
	if strings.ContainsAny(v, ":#\"'{}[]&*!|>%@`") || strings.TrimSpace(v) != v {
		return fmt.Sprintf("%q", v)
	}
	return v
}
