package httpclient

import "strings"

// EnsureTrailingSlash appends "/" to path unless it already ends with one.
// The backend routes every endpoint with a trailing slash.
func EnsureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// JoinPath joins segments with "/" and guarantees a trailing slash.
func JoinPath(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		out += "/" + s
	}
	return EnsureTrailingSlash(out)
}
