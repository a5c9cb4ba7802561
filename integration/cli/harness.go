//go:build integration

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/claudesync/internal/testutil"
)

const defaultTimeout = 2 * time.Minute

// Harness builds the claudesync binary once and runs it against a
// throwaway workspace with its own HOME, canonical root and targets file.
type Harness struct {
	t      *testing.T
	binary string
	home   string

	// Root is the canonical .claude directory.
	Root string

	// TargetsFile lists the project targets.
	TargetsFile string
}

// NewHarness builds the binary and lays out an empty workspace
func NewHarness(t *testing.T, ctx context.Context) *Harness {
	t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	work := t.TempDir()
	h := &Harness{
		t:           t,
		binary:      filepath.Join(work, "bin", "claudesync"),
		home:        filepath.Join(work, "home"),
		Root:        filepath.Join(work, "home", "dot-claude", ".claude"),
		TargetsFile: filepath.Join(work, "home", "dot-claude", "targets.txt"),
	}

	t.Logf("Building %s", h.binary)
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/claudesync")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: t, prefix: "[build] "}
	if err := cmd.Run(); err != nil {
		t.Fatalf("build claudesync: %v", err)
	}

	if err := os.MkdirAll(h.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	return h
}

// Exec runs claudesync with args and returns stdout, stderr and the exit code
func (h *Harness) Exec(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()

	args = append([]string{"--root", h.Root, "--targets", h.TargetsFile}, args...)
	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Env = append(os.Environ(), "HOME="+h.home)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustExec runs claudesync and fails the test if it exits non-zero
func (h *Harness) MustExec(ctx context.Context, args ...string) string {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Exec(ctx, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout
}

// AddTarget creates a project .claude directory under HOME and appends it
// to the targets file.
func (h *Harness) AddTarget(name string) string {
	h.t.Helper()

	target := filepath.Join(h.home, "code", name, ".claude")
	if err := os.MkdirAll(target, 0o755); err != nil {
		h.t.Fatal(err)
	}

	f, err := os.OpenFile(h.TargetsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.t.Fatal(err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := fmt.Fprintln(f, target); err != nil {
		h.t.Fatal(err)
	}
	return target
}

// ReadFile returns the content of path, failing the test if it is unreadable
func (h *Harness) ReadFile(path string) string {
	h.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
