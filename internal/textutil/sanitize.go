package textutil

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// ASCII letters are lowercased, digits, hyphens and underscores are kept,
// and everything else becomes an underscore. Returns "unknown" for empty
// input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if out := strings.Trim(b.String(), "_-"); out != "" {
		return out
	}
	return "unknown"
}

// PathToken names a file after an image path. The readable part is
// SanitizeToken of path; the suffix hashes the exact path, so paths that
// sanitize alike (Hero.png and hero.png, a b.png and a_b.png) stay apart.
func PathToken(path string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return fmt.Sprintf("%s-%08x", SanitizeToken(path), h.Sum32())
}
