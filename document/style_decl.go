package document

import "strings"

type declaration struct {
	name  string
	value string
}

// declarations is an ordered inline style attribute.
type declarations []declaration

// parseStyle splits an inline style on top-level semicolons, honouring quotes and
// parentheses and backslash escapes so url("a;b") stays intact.
func parseStyle(style string) declarations {
	var decls declarations
	var quote rune
	escaped := false
	depth := 0
	start := 0

	flush := func(end int) {
		part := strings.TrimSpace(style[start:end])
		if part == "" {
			return
		}
		name, value, found := strings.Cut(part, ":")
		if !found {
			return
		}
		decls = append(decls, declaration{name: strings.TrimSpace(name), value: strings.TrimSpace(value)})
	}

	for i, r := range style {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(style))
	return decls
}

func (d declarations) get(name string) (string, bool) {
	for _, decl := range d {
		if decl.name == name {
			return decl.value, true
		}
	}
	return "", false
}

func (d declarations) set(name, value string) declarations {
	for i, decl := range d {
		if decl.name == name {
			d[i].value = value
			return d
		}
	}
	return append(d, declaration{name: name, value: value})
}

func (d declarations) String() string {
	parts := make([]string, 0, len(d))
	for _, decl := range d {
		parts = append(parts, decl.name+": "+decl.value)
	}
	return strings.Join(parts, "; ")
}
