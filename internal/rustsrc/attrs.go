package rustsrc

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// attr is one #[...] or #![...] attribute, reduced to what the sidebar needs.
type attr struct {
	name  string // first path segment, e.g. "doc", "path", "proc_macro_derive"
	args  string // text inside the outer parentheses, whitespace removed
	value string // decoded string literal after '=' (doc = "...", path = "...")
	isSet bool   // value was present
}

// parseAttr reads the text of an attribute_item or inner_attribute_item.
func parseAttr(text string) attr {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "#!")
	text = strings.TrimPrefix(text, "#")
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	text = strings.TrimSpace(text)

	end := strings.IndexAny(text, "(= \t\n")
	if end < 0 {
		return attr{name: text}
	}
	a := attr{name: text[:end]}
	rest := strings.TrimSpace(text[end:])

	switch {
	case strings.HasPrefix(rest, "("):
		inner := strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		a.args = strings.Join(strings.Fields(inner), "")
	case strings.HasPrefix(rest, "="):
		if v, ok := unquoteRust(strings.TrimSpace(rest[1:])); ok {
			a.value = v
			a.isSet = true
		}
	}
	return a
}

// hidesItem reports #[doc(hidden)].
func (a attr) hidesItem() bool {
	if a.name != "doc" {
		return false
	}
	for _, arg := range strings.Split(a.args, ",") {
		if arg == "hidden" {
			return true
		}
	}
	return false
}

// testOnly reports #[cfg(test)], which rustdoc never sees.
func (a attr) testOnly() bool {
	return a.name == "cfg" && a.args == "test"
}

// deriveName returns the macro name of #[proc_macro_derive(Name, attributes(...))].
func (a attr) deriveName() string {
	name, _, _ := strings.Cut(a.args, ",")
	return name
}

// unquoteRust decodes a Rust string literal, raw or escaped.
func unquoteRust(lit string) (string, bool) {
	if strings.HasPrefix(lit, "r") {
		body := lit[1:]
		hashes := len(body) - len(strings.TrimLeft(body, "#"))
		body = body[hashes:]
		closing := `"` + strings.Repeat("#", hashes)
		if !strings.HasPrefix(body, `"`) || !strings.HasSuffix(body, closing) || len(body) < 1+len(closing) {
			return "", false
		}
		return body[1 : len(body)-len(closing)], true
	}

	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", false
	}
	body := lit[1 : len(lit)-1]

	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			i++
			continue
		}
		esc := body[i+1]
		i += 2
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'':
			b.WriteByte(esc)
		case '\n':
			// Line continuation swallows the newline and leading whitespace.
			for i < len(body) && strings.ContainsRune(" \t\r\n", rune(body[i])) {
				i++
			}
		case 'x':
			if i+2 <= len(body) {
				if v, err := strconv.ParseUint(body[i:i+2], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteString(`\x`)
		case 'u':
			end := strings.IndexByte(body[i:], '}')
			if strings.HasPrefix(body[i:], "{") && end > 0 {
				hex := strings.ReplaceAll(body[i+1:i+end], "_", "")
				if v, err := strconv.ParseUint(hex, 16, 32); err == nil && utf8.ValidRune(rune(v)) {
					b.WriteRune(rune(v))
					i += end + 1
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return b.String(), true
}
