package watcher

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Excluded reports whether rel (slash separated) matches any pattern, either
// as a whole path or through any one of its components.
func Excluded(rel string, patterns []string) bool {
	if rel == "" || rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		for _, part := range parts {
			if ok, _ := doublestar.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}
