package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Client provides the read-only git queries used after a pull
type Client interface {
	// IsWorkTree reports whether dir is inside a git work tree
	IsWorkTree(ctx context.Context, dir string) bool
	// ChangedPaths lists uncommitted changes under dir, relative to the
	// repository root
	ChangedPaths(ctx context.Context, dir string) ([]string, error)
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct{}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{}
}

// IsWorkTree runs git rev-parse --is-inside-work-tree in dir. A missing git
// binary counts as not a work tree.
func (c *ShellClient) IsWorkTree(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// ChangedPaths returns the paths git status reports as modified, added,
// deleted or untracked below dir.
func (c *ShellClient) ChangedPaths(ctx context.Context, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "status", "--porcelain=v1", "--untracked-files=all", "--", ".")
	output, err := c.runCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parsePorcelain(output), nil
}

// parsePorcelain extracts paths from git status --porcelain=v1 output. For
// renames only the new path is kept.
func parsePorcelain(output string) []string {
	paths := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		// "XY path"
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		paths = append(paths, strings.Trim(path, `"`))
	}
	return paths
}

// runCommand executes a command and returns its stdout. Stderr is only
// used for the error message on failure, so warnings git prints there are
// never mistaken for output.
func (c *ShellClient) runCommand(cmd *exec.Cmd) (string, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(output), nil
}
