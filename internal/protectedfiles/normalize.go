package protectedfiles

import (
	"path/filepath"
	"runtime"
	"strings"
)

// normalizePath converts path to forward slashes and, on Windows, folds
// case and rewrites a leading drive letter to "/<letter>/" so glob patterns
// are platform-independent (spec §4.3).
func normalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
		if len(p) >= 2 && p[1] == ':' {
			p = "/" + string(p[0]) + p[2:]
		}
	}
	return p, nil
}

func normalizeBasename(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(name)
	}
	return name
}
