package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/llama2.c/run
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ExpandHomeAll expands each non-nil path in place.
func ExpandHomeAll(paths ...*string) error {
	for _, p := range paths {
		if p == nil {
			continue
		}
		v, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

// IsFile reports whether path exists and is not a directory.
func IsFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
