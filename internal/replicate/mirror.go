package replicate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// dirMeta is applied to copied directories once their contents are written,
// since writing into a directory bumps its mtime.
type dirMeta struct {
	path    string
	mode    fs.FileMode
	modTime time.Time
}

// MirrorDir replaces destParent/<base(src)> with a copy of the src tree and
// returns the destination path. Files present in an earlier copy but not in
// src do not survive.
//
// The tree is first copied into a hidden work directory inside destParent.
// Only after the copy succeeds is the old destination moved aside and the
// new tree renamed into place, so a failed copy leaves the previous
// destination untouched. The swap itself is two renames and is not atomic.
func (r *Replicator) MirrorDir(src, destParent string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source is not a directory: %s", src)
	}

	name := filepath.Base(src)
	dest := filepath.Join(destParent, name)

	work, err := os.MkdirTemp(destParent, "."+name+".claudesync-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(work)
	}()

	staged := filepath.Join(work, name)
	if err := r.copyTree(src, staged); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", src, err)
	}

	if err := swap(staged, dest, filepath.Join(work, "previous")); err != nil {
		return "", err
	}

	r.logger.Info("synced directory", "name", name+"/", "source", src, "dest", dest)
	return dest, nil
}

// swap moves the current dest (if any) to backup and renames staged into
// its place, restoring backup when the second rename fails.
func swap(staged, dest, backup string) error {
	hadPrevious := true
	if err := os.Rename(dest, backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to move existing %s aside: %w", dest, err)
		}
		hadPrevious = false
	}

	if err := os.Rename(staged, dest); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, dest)
		}
		return fmt.Errorf("failed to move staged tree into %s: %w", dest, err)
	}
	return nil
}

// copyTree copies the src tree to dst, which must not exist yet.
func (r *Replicator) copyTree(src, dst string) error {
	var dirs []dirMeta

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && r.Ignored(rel) {
			r.logger.Debug("ignoring entry", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			// Owner-writable until the final mode is applied.
			if err := os.Mkdir(target, 0o700); err != nil {
				return err
			}
			dirs = append(dirs, dirMeta{path: target, mode: info.Mode().Perm(), modTime: info.ModTime()})
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return err
			}
		case d.Type().IsRegular():
			if err := copyRegular(path, target, info); err != nil {
				return err
			}
		default:
			r.logger.Warn("skipping special file", "path", path, "mode", info.Mode().String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Children before parents.
	for i := len(dirs) - 1; i >= 0; i-- {
		m := dirs[i]
		if err := os.Chmod(m.path, m.mode); err != nil {
			return err
		}
		if err := os.Chtimes(m.path, m.modTime, m.modTime); err != nil {
			return err
		}
	}
	return nil
}

// Ignored reports whether rel, a path relative to a mirrored tree root,
// matches any ignore pattern.
func (r *Replicator) Ignored(rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, pattern := range r.ignore {
		if match, _ := doublestar.Match(pattern, slashed); match {
			return true
		}
	}
	return false
}
