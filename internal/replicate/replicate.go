// Package replicate implements the two copy primitives claudesync is built
// on: a metadata-preserving single file copy and a mirror copy of a
// directory tree.
package replicate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Replicator copies files and directory trees, logging each operation
type Replicator struct {
	logger *slog.Logger
	ignore []string
}

// New creates a Replicator. Entries of mirrored trees whose slash-separated
// path relative to the tree root matches one of the ignore patterns are not
// copied.
func New(logger *slog.Logger, ignore []string) *Replicator {
	return &Replicator{
		logger: logger,
		ignore: ignore,
	}
}

// CopyFile copies src into destDir under its own base name, replacing any
// existing file, and returns the destination path. Mode and modification
// time are carried over. destDir must already exist.
func (r *Replicator) CopyFile(src, destDir string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("failed to stat source file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source is a directory, not a file: %s", src)
	}

	dst := filepath.Join(destDir, filepath.Base(src))
	if err := copyRegular(src, dst, info); err != nil {
		return "", fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	r.logger.Info("copied file", "name", filepath.Base(src), "source", src, "dest", dst)
	return dst, nil
}

// copyRegular writes src to dst through a temp file in dst's directory and
// an atomic rename, then applies info's mode and timestamps.
func copyRegular(src, dst string, info os.FileInfo) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// Create temp file in destination directory
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".claudesync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(info.Mode().Perm()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	// Access time is not portable across platforms; both are set to mtime.
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}
