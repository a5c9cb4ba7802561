package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// initRepo creates a repository with one committed file.
func initRepo(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, ".claude"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".claude", "constitution.md"), []byte("v1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cmds := [][]string{
		{"git", "init", "-b", "main", dir},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
		{"git", "-C", dir, "add", "."},
		{"git", "-C", dir, "commit", "-m", "Initial commit"},
	}
	for _, args := range cmds {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
}

func TestIsWorkTree(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	client := NewShellClient()

	repo := t.TempDir()
	initRepo(t, repo)

	if !client.IsWorkTree(ctx, filepath.Join(repo, ".claude")) {
		t.Error("expected .claude inside repo to be a work tree")
	}
	if client.IsWorkTree(ctx, t.TempDir()) {
		t.Error("expected plain temp dir not to be a work tree")
	}
}

func TestChangedPaths(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	client := NewShellClient()

	repo := t.TempDir()
	initRepo(t, repo)
	claudeDir := filepath.Join(repo, ".claude")

	paths, err := client.ChangedPaths(ctx, claudeDir)
	if err != nil {
		t.Fatalf("ChangedPaths() error: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected clean tree, got %v", paths)
	}

	if err := os.WriteFile(filepath.Join(claudeDir, "constitution.md"), []byte("v2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(claudeDir, "agents"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(claudeDir, "agents", "new.md"), []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Changes outside dir are not reported.
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("readme\n"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err = client.ChangedPaths(ctx, claudeDir)
	if err != nil {
		t.Fatalf("ChangedPaths() error: %v", err)
	}
	want := []string{".claude/agents/new.md", ".claude/constitution.md"}
	if diff := cmp.Diff(want, sortedCopy(paths)); diff != "" {
		t.Errorf("ChangedPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestChangedPaths_NotARepo(t *testing.T) {
	requireGit(t)
	if _, err := NewShellClient().ChangedPaths(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error outside a repository")
	}
}

func TestParsePorcelain(t *testing.T) {
	output := " M .claude/constitution.md\n?? .claude/agents/new.md\nR  old.md -> .claude/renamed.md\nD  \"with space.md\"\n\n"
	want := []string{
		".claude/constitution.md",
		".claude/agents/new.md",
		".claude/renamed.md",
		"with space.md",
	}
	if diff := cmp.Diff(want, parsePorcelain(output)); diff != "" {
		t.Errorf("parsePorcelain() mismatch (-want +got):\n%s", diff)
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestRunCommand_IgnoresStderrOnSuccess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}

	c := NewShellClient()
	out, err := c.runCommand(exec.Command("sh", "-c", "echo ' M .claude/a.md'; echo 'warning: CRLF will be replaced by LF' >&2"))
	if err != nil {
		t.Fatalf("runCommand() error: %v", err)
	}
	if out != " M .claude/a.md\n" {
		t.Errorf("output = %q, want stdout only", out)
	}

	_, err = c.runCommand(exec.Command("sh", "-c", "echo partial; echo 'fatal: not a git repository' >&2; exit 128"))
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "fatal: not a git repository") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestChangedPaths_StderrWarningsNotParsed(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}

	// A git stand-in that warns on stderr while reporting one change.
	bin := t.TempDir()
	script := "#!/bin/sh\necho 'warning: safe.directory is not set' >&2\necho '?? .claude/agents/new.md'\n"
	if err := os.WriteFile(filepath.Join(bin, "git"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	paths, err := NewShellClient().ChangedPaths(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ChangedPaths() error: %v", err)
	}
	if diff := cmp.Diff([]string{".claude/agents/new.md"}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}
