package domain

import "strings"

// NormalizePath converts a relative path to the forward-slash form used as
// the matching key: backslashes become slashes, and leading "./", leading
// slashes and trailing slashes are removed.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	p = strings.TrimRight(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// ParentPath returns the path with its last segment removed.
// A top-level path has the empty string as parent.
func ParentPath(p string) string {
	p = NormalizePath(p)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// BaseName returns the last segment of a relative path
func BaseName(p string) string {
	p = NormalizePath(p)
	return p[strings.LastIndexByte(p, '/')+1:]
}

// JoinPath joins a parent relative path and a child name
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Depth returns the number of segments above the last one
func Depth(p string) int {
	p = NormalizePath(p)
	if p == "" {
		return 0
	}
	return strings.Count(p, "/")
}
