// Package testutil holds helpers shared by claudesync's tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FindProjectRoot walks up from the caller's source file to the directory
// holding go.mod.
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// ProjectFile returns the absolute path of a file checked into the
// repository, failing the test when it is missing.
func ProjectFile(t testing.TB, rel string) string {
	t.Helper()
	root, err := FindProjectRoot()
	if err != nil {
		t.Fatalf("locate project root: %v", err)
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("project file %s: %v", rel, err)
	}
	return path
}
