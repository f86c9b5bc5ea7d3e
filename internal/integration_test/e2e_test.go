// Package e2e_test drives the full C1-C9 pipeline (mirror.Run) against real
// git repositories on disk, exercising real git rather than mocking it. The
// external rewrite engine is stubbed with a no-op `git-filter-repo` script
// placed on $PATH: PrepareResultBranch already points the result branch at
// the fetched tip before the engine runs (§4.6.4), so a no-op engine is a
// valid identity rewrite and lets these tests focus on orchestration
// (C2-C5, C8-C9) rather than on the external tool's own filtering
// behaviour, which is out of this core's scope per the Non-goals.
package e2e_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/utilitywarehouse/git-filter-mirror/internal/config"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/mirror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asMirrorError(err error, target **mirror.Error) bool {
	return errors.As(err, target)
}

const testGitUser = "git-filter-mirror-e2e"

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "git-filter-mirror-e2e-home")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)

	os.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(tmp, "gitconfig"))
	os.Setenv("GIT_CONFIG_SYSTEM", "/dev/null")

	mustExec(nil, "", "git", "config", "--global", "user.name", testGitUser)
	mustExec(nil, "", "git", "config", "--global", "user.email", testGitUser+"@example.com")
	mustExec(nil, "", "git", "config", "--global", "init.defaultBranch", "main")

	bin := filepath.Join(tmp, "fakebin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	engine := filepath.Join(bin, "git-filter-repo")
	if err := os.WriteFile(engine, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	os.Exit(m.Run())
}

// mustExec runs a command with a real *testing.T when available, or fails
// the process outright during TestMain setup (t is nil there).
func mustExec(t *testing.T, dir string, name string, args ...string) string {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := fmt.Sprintf("%s %s: %v\n%s", name, strings.Join(args, " "), err, out)
		if t != nil {
			t.Fatal(msg)
		}
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
	return strings.TrimSpace(string(out))
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	return mustExec(t, dir, "git", args...)
}

// fileURL turns an absolute local path into the file:// URL form this
// tool's config validation and digesting both expect.
func fileURL(path string) string {
	return "file://" + path
}

func initUpstream(t *testing.T, dir string) {
	t.Helper()
	mustGit(t, "", "init", "-q", "-b", "main", dir)
	if err := os.WriteFile(filepath.Join(dir, "file"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-q", "-m", "initial commit")
}

func commitFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-q", "-m", content)
	return mustGit(t, dir, "rev-parse", "HEAD")
}

func initBareDestination(t *testing.T, dir string) {
	t.Helper()
	mustGit(t, "", "init", "-q", "--bare", dir)
}

func headOf(t *testing.T, dir, ref string) string {
	t.Helper()
	return mustGit(t, dir, "rev-parse", ref)
}

func refExists(t *testing.T, dir, ref string) bool {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref)
	cmd.Dir = dir
	return cmd.Run() == nil
}

func baseConfig(t *testing.T, workdir, source, destination string) config.RunConfig {
	cfg := config.RunConfig{
		Source:      fileURL(source),
		Destination: fileURL(destination),
		FilterSpec:  []string{"--prune-empty"},
		Workdir:     workdir,
	}
	cfg.ApplyDefaults()
	return cfg
}

func Test_FirstFullRewrite(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	wantSHA := headOf(t, upstream, "main")
	gotSHA := headOf(t, destination, "refs/heads/main")
	if gotSHA != wantSHA {
		t.Errorf("destination main = %s, want %s", gotSHA, wantSHA)
	}
}

func Test_IncrementalRewrite(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}

	sha2 := commitFile(t, upstream, "file", "v2")

	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if got := headOf(t, destination, "refs/heads/main"); got != sha2 {
		t.Errorf("destination main = %s, want %s", got, sha2)
	}
}

func Test_TagBeyondLookupBudget_IsNonFatal(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	// a tag on a commit the no-op engine never records a mapping for: with
	// tags-plan all, C7's ancestor walk exhausts its budget and the tag is
	// skipped rather than failing the run (§7: TagUnmappable is non-fatal).
	mustGit(t, upstream, "tag", "-a", "v1", "-m", "v1")

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	cfg.TagsPlan = config.TagPolicyAll
	cfg.ApplyDefaults()

	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if refExists(t, destination, "refs/tags/v1") {
		t.Errorf("expected unmappable tag v1 to be skipped, but it was published")
	}
}

func Test_BranchBlacklistTakesPrecedenceOverWhitelist(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	mustGit(t, upstream, "checkout", "-q", "-b", "release")
	commitFile(t, upstream, "file", "release-1")
	mustGit(t, upstream, "checkout", "-q", "-b", "release-old")
	commitFile(t, upstream, "file", "release-old-1")
	mustGit(t, upstream, "checkout", "-q", "main")

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	cfg.BranchWhitelist = []string{"rx:release.*"}
	cfg.BranchBlacklist = []string{"release-old"}

	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !refExists(t, destination, "refs/heads/release") {
		t.Errorf("expected whitelisted branch release to be published")
	}
	if refExists(t, destination, "refs/heads/release-old") {
		t.Errorf("expected blacklisted branch release-old to be excluded despite matching the whitelist regex")
	}
	if refExists(t, destination, "refs/heads/main") {
		t.Errorf("expected main to be excluded, it does not match the whitelist")
	}
}

func Test_PruneReconcilesDeletedBranch(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	mustGit(t, upstream, "checkout", "-q", "-b", "feature")
	commitFile(t, upstream, "file", "feature-1")
	mustGit(t, upstream, "checkout", "-q", "main")

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	cfg.PruneBranches = true

	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if !refExists(t, destination, "refs/heads/feature") {
		t.Fatalf("expected feature branch to be published before deletion")
	}

	mustGit(t, upstream, "branch", "-D", "feature")

	if err := mirror.Run(context.Background(), cfg, testLogger(), nil); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if refExists(t, destination, "refs/heads/feature") {
		t.Errorf("expected feature branch to be pruned from destination after deletion at source")
	}
	if !refExists(t, destination, "refs/heads/main") {
		t.Errorf("expected main to survive pruning")
	}
}

func Test_PolicyConflict_PruneTagsWithTagsPlanNone(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	destination := filepath.Join(root, "destination")
	initUpstream(t, upstream)
	initBareDestination(t, destination)

	cfg := baseConfig(t, filepath.Join(root, "work"), upstream, destination)
	cfg.TagsPlan = config.TagPolicyNone
	cfg.PruneTags = true

	err := mirror.Run(context.Background(), cfg, testLogger(), nil)
	if err == nil {
		t.Fatal("expected ConfigConflict error, got nil")
	}

	var merr *mirror.Error
	if !asMirrorError(err, &merr) {
		t.Fatalf("expected *mirror.Error, got %T: %v", err, err)
	}
	if merr.Kind != mirror.ConfigConflict {
		t.Errorf("expected ConfigConflict, got %v", merr.Kind)
	}
}
