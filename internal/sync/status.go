package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/schaermu/claudesync/internal/bundle"
	"github.com/schaermu/claudesync/internal/targets"
)

// Status compares every target against the canonical root without writing
// anything. A missing target is reported as missing all push items.
func (e *Engine) Status(ctx context.Context) ([]TargetStatus, error) {
	root := e.cfg.Paths.CanonicalRoot
	if err := requireDir(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCanonicalRootMissing, root, err)
	}

	list, err := targets.Load(e.cfg.Paths.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	// Hash the canonical side once; it is the same for every target.
	items := bundle.PushItems(e.cfg.Sync.PushSettings)
	canonical := make([]map[string]string, len(items))
	for i, item := range items {
		entries, err := e.manifest(item, root)
		if err != nil {
			return nil, fmt.Errorf("failed to read canonical %s: %w", item.Label(), err)
		}
		if entries == nil {
			return nil, fmt.Errorf("canonical %s is missing", item.Label())
		}
		canonical[i] = entries
	}

	statuses := make([]TargetStatus, 0, len(list))
	for _, target := range list {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}

		status := TargetStatus{Target: target}
		for i, item := range items {
			got, err := e.manifest(item, target)
			if err != nil {
				return statuses, fmt.Errorf("failed to read %s in %s: %w", item.Label(), target, err)
			}
			if got == nil {
				status.Missing = append(status.Missing, item.Label())
				continue
			}
			diffManifests(&status, canonical[i], got)
		}

		sort.Strings(status.Missing)
		sort.Strings(status.Changed)
		sort.Strings(status.Extra)

		e.logger.Debug("target status",
			"target", target,
			"missing", len(status.Missing),
			"changed", len(status.Changed),
			"extra", len(status.Extra))
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// manifest maps every entry of item under root to a content fingerprint,
// keyed by slash-separated path relative to root. Directories map to "".
// It returns nil when the item does not exist.
func (e *Engine) manifest(item bundle.Item, root string) (map[string]string, error) {
	base := item.Path(root)
	info, err := os.Lstat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make(map[string]string)
	if item.Kind == bundle.KindFile || !info.IsDir() {
		fp, err := fingerprint(base, info)
		if err != nil {
			return nil, err
		}
		entries[item.Name] = fp
		return entries, nil
	}

	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		if rel != "." && e.repl.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		key := path.Join(item.Name, filepath.ToSlash(rel))
		if d.IsDir() {
			entries[key+"/"] = ""
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fp, err := fingerprint(p, info)
		if err != nil {
			return err
		}
		entries[key] = fp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// diffManifests records the differences between want and got on status.
func diffManifests(status *TargetStatus, want, got map[string]string) {
	for key, fp := range want {
		other, ok := got[key]
		switch {
		case !ok:
			status.Missing = append(status.Missing, key)
		case other != fp:
			status.Changed = append(status.Changed, key)
		}
	}
	for key := range got {
		if _, ok := want[key]; !ok {
			status.Extra = append(status.Extra, key)
		}
	}
}

// fingerprint identifies a file by content, or a symlink by its target.
func fingerprint(p string, info fs.FileInfo) (string, error) {
	if info.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(p)
		if err != nil {
			return "", err
		}
		return "symlink:" + link, nil
	}
	return fileHash(p)
}

// fileHash computes the SHA256 hash of a file
func fileHash(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
