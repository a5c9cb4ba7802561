package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bobg/flock"
	"github.com/schaermu/claudesync/internal/bundle"
	"github.com/schaermu/claudesync/internal/config"
	"github.com/schaermu/claudesync/internal/git"
	"github.com/schaermu/claudesync/internal/replicate"
	"github.com/schaermu/claudesync/internal/targets"
)

// Engine orchestrates pushes from the canonical root to the targets and
// pulls from a single target back into the canonical root
type Engine struct {
	cfg    *config.Config
	repl   *replicate.Replicator
	git    git.Client
	logger *slog.Logger
	dryRun bool
	locker flock.Locker
}

// NewEngine creates a new sync engine. gitClient may be nil, in which case
// pulls do not report repository changes.
func NewEngine(cfg *config.Config, gitClient git.Client, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		repl:   replicate.New(logger, cfg.Sync.Ignore),
		git:    gitClient,
		logger: logger,
		dryRun: dryRun,
		locker: newLocker(),
	}
}

// Push copies the constitution and the asset directories from the canonical
// root into every target listed in the targets file. Targets are processed
// in order and the first failure aborts the remaining ones.
func (e *Engine) Push(ctx context.Context) (*PushResult, error) {
	root := e.cfg.Paths.CanonicalRoot
	e.logger.Info("starting push",
		"canonical_root", root,
		"targets_file", e.cfg.Paths.TargetsFile,
		"dry_run", e.dryRun)

	if err := requireDir(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCanonicalRootMissing, root, err)
	}

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	list, err := targets.Load(e.cfg.Paths.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	e.logger.Info("loaded targets", "count", len(list))

	result := &PushResult{Targets: make([]string, 0, len(list))}
	for _, target := range list {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e.logger.Info("syncing target", "target", target)
		if err := e.apply(e.pushPlan(target)); err != nil {
			return result, fmt.Errorf("failed to sync target %s: %w", target, err)
		}
		result.Targets = append(result.Targets, target)
	}

	e.logger.Info("push completed", "targets", len(result.Targets))
	return result, nil
}

// pushPlan lists every push item; all of them must exist in the canonical
// root, so nothing is skipped.
func (e *Engine) pushPlan(target string) *Plan {
	items := bundle.PushItems(e.cfg.Sync.PushSettings)
	plan := &Plan{Ops: make([]Op, 0, len(items))}
	for _, item := range items {
		plan.Ops = append(plan.Ops, Op{
			Item:    item,
			Source:  item.Path(e.cfg.Paths.CanonicalRoot),
			DestDir: target,
		})
	}
	return plan
}

// Pull copies the bundle from source, a target's asset directory, back into
// the canonical root. Items missing from source are skipped with a warning.
func (e *Engine) Pull(ctx context.Context, source string) (*PullResult, error) {
	source, err := e.validateSource(source)
	if err != nil {
		return nil, err
	}

	dest := e.cfg.Paths.CanonicalRoot
	if err := requireDir(dest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCanonicalRootMissing, dest, err)
	}
	if source == filepath.Clean(dest) {
		return nil, fmt.Errorf("%w: source is the canonical root itself: %s", ErrInvalidSource, source)
	}

	e.logger.Info("starting pull", "source", source, "dest", dest, "dry_run", e.dryRun)

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	plan, err := e.pullPlan(source, dest)
	if err != nil {
		return nil, err
	}
	for _, item := range plan.Skipped {
		e.logger.Warn("item not found in source, skipping", "item", item.Label(), "source", source)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.apply(plan); err != nil {
		return nil, fmt.Errorf("failed to sync from %s: %w", source, err)
	}

	result := &PullResult{
		Source:  source,
		Dest:    dest,
		Copied:  make([]bundle.Item, 0, len(plan.Ops)),
		Skipped: plan.Skipped,
	}
	for _, op := range plan.Ops {
		result.Copied = append(result.Copied, op.Item)
	}

	if !e.dryRun {
		result.ChangedPaths = e.changedPaths(ctx, dest)
	}

	e.logger.Info("pull completed", "copied", len(result.Copied), "skipped", len(result.Skipped))
	return result, nil
}

// validateSource checks, in order, that source exists, is a directory and
// carries the expected name. It returns the absolute, cleaned path.
func (e *Engine) validateSource(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidSource)
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: source directory does not exist: %s", ErrInvalidSource, source)
		}
		return "", fmt.Errorf("%w: failed to stat %s: %v", ErrInvalidSource, source, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: source is not a directory: %s", ErrInvalidSource, source)
	}

	want := e.cfg.Sync.ExpectedDirName
	if name := filepath.Base(abs); name != want {
		return "", fmt.Errorf("%w: source directory must be named %q, got %q", ErrInvalidSource, want, name)
	}

	return abs, nil
}

// pullPlan includes the pull items present in source and records the
// missing ones as skipped.
func (e *Engine) pullPlan(source, dest string) (*Plan, error) {
	plan := &Plan{
		Ops:     make([]Op, 0),
		Skipped: make([]bundle.Item, 0),
	}

	for _, item := range bundle.PullItems() {
		path := item.Path(source)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				plan.Skipped = append(plan.Skipped, item)
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		plan.Ops = append(plan.Ops, Op{Item: item, Source: path, DestDir: dest})
	}

	return plan, nil
}

// apply executes the plan, or only logs it in dry-run mode
func (e *Engine) apply(plan *Plan) error {
	if e.dryRun {
		e.logPlanDetails(plan)
		return nil
	}

	for _, op := range plan.Ops {
		var err error
		switch op.Item.Kind {
		case bundle.KindDir:
			_, err = e.repl.MirrorDir(op.Source, op.DestDir)
		default:
			_, err = e.repl.CopyFile(op.Source, op.DestDir)
		}
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", op.Item.Label(), err)
		}
	}
	return nil
}

// logPlanDetails logs detailed plan information for dry-run
func (e *Engine) logPlanDetails(plan *Plan) {
	for _, op := range plan.Ops {
		e.logger.Info("[dry-run] would sync",
			"item", op.Item.Label(),
			"source", op.Source,
			"dest", filepath.Join(op.DestDir, op.Item.Name))
	}
}

// changedPaths asks git for uncommitted changes in the canonical root.
// Failures are logged and yield no paths.
func (e *Engine) changedPaths(ctx context.Context, dir string) []string {
	if e.git == nil || !e.git.IsWorkTree(ctx, dir) {
		return nil
	}

	paths, err := e.git.ChangedPaths(ctx, dir)
	if err != nil {
		e.logger.Warn("failed to list repository changes", "dir", dir, "error", err)
		return nil
	}
	return paths
}

// requireDir returns an error unless path is an existing directory.
func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}
