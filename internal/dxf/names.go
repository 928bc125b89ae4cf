package dxf

import (
	"strings"

	"github.com/elliotwutingfeng/asciiset"
)

// characters AutoCAD rejects in symbol table names
var reservedChars, _ = asciiset.MakeASCIISet("<>/\\\":;?*|=`,")

// SanitizeName replaces characters that symbol table names may not
// contain by underscores. A leading '*' marks anonymous and special
// records and is kept. Control characters are replaced too.
func SanitizeName(name string) string {
	clean := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || (reservedChars.Contains(c) && !(i == 0 && c == '*')) {
			clean = false
			break
		}
	}
	if clean {
		return name
	}
	var sb strings.Builder
	sb.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || (reservedChars.Contains(c) && !(i == 0 && c == '*')) {
			sb.WriteByte('_')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
