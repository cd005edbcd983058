package shim

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Generate returns module source that re-exports each name from globalThis.
// "default" becomes the default export. Names that cannot be declared as a
// const binding are exported through a local alias.
func Generate(names []string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, name := range names {
		key := GlobalKey(name)
		switch {
		case name == "default":
			_, _ = buf.WriteString("export default globalThis['" + key + "'];\n")
		case isBindingName(name):
			_, _ = buf.WriteString("export const " + name + " = globalThis['" + key + "'];\n")
		default:
			local := "__export" + strconv.Itoa(i)
			_, _ = buf.WriteString("const " + local + " = globalThis['" + key + "'];\n")
			_, _ = buf.WriteString("export { " + local + " as " + quote(name) + " };\n")
		}
	}
	return buf.String()
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// isBindingName reports whether name can be used in `export const name`.
func isBindingName(name string) bool {
	if name == "" || reserved[name] {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

var reserved = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "arguments": true, "eval": true,
}
