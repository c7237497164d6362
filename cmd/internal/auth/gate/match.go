package gate

import "strings"

const wildcardSuffix = "/:path*"

// matchPath reports whether path matches pattern. Patterns are literal paths,
// optionally ending in "/:path*".
func matchPath(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, wildcardSuffix); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matchPath(p, path) {
			return true
		}
	}
	return false
}
