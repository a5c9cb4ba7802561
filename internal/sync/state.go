package sync

import (
	"errors"

	"github.com/schaermu/claudesync/internal/bundle"
)

var (
	// ErrInvalidSource is returned when the pull argument is not an
	// acceptable target asset directory.
	ErrInvalidSource = errors.New("invalid source directory")

	// ErrCanonicalRootMissing is returned when the canonical asset root does
	// not exist or is not a directory.
	ErrCanonicalRootMissing = errors.New("canonical root not found")
)

// Plan represents the replication steps to perform against one destination
type Plan struct {
	Ops     []Op
	Skipped []bundle.Item // optional items absent at the source
}

// Op copies one bundle item into a destination root
type Op struct {
	Item    bundle.Item
	Source  string // absolute path of the item at the source root
	DestDir string // root receiving the item
}

// PushResult summarizes a forward sync
type PushResult struct {
	Targets []string // targets synced, in order
}

// PullResult summarizes a reverse sync
type PullResult struct {
	Source       string
	Dest         string
	Copied       []bundle.Item
	Skipped      []bundle.Item
	ChangedPaths []string // uncommitted paths in the canonical repo, if any
}

// TargetStatus reports how a target differs from the canonical root. Paths
// are slash-separated and relative to the target root.
type TargetStatus struct {
	Target  string
	Missing []string // present in the canonical root only
	Changed []string // content differs
	Extra   []string // present in the target only, inside mirrored directories
}

// InSync reports whether the target matches the canonical root.
func (s TargetStatus) InSync() bool {
	return len(s.Missing) == 0 && len(s.Changed) == 0 && len(s.Extra) == 0
}
