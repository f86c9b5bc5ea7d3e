package mirror

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utilitywarehouse/git-filter-mirror/internal/fsutil"
	"github.com/utilitywarehouse/git-filter-mirror/internal/gitexec"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/auth"
)

const defaultFetchRefSpec = "+refs/*:refs/*"

// SourceMirror maintains the bare mirror of C2: a local bare repository
// whose refs exactly mirror the source's refs as of the last Refresh. No
// worktree links are maintained, only branches/tags (per the Non-goals).
type SourceMirror struct {
	dir         string
	remote      string
	auth        *auth.Auth
	noHardlinks bool
	log         *slog.Logger
}

// NewSourceMirror returns a handle on the source mirror at dir.
func NewSourceMirror(dir, remote string, a *auth.Auth, noHardlinks bool, log *slog.Logger) *SourceMirror {
	return &SourceMirror{
		dir:         dir,
		remote:      remote,
		auth:        a,
		noHardlinks: noHardlinks,
		log:         log.With("mirror", dir),
	}
}

func (m *SourceMirror) authEnv(ctx context.Context, scratchDir string) ([]string, error) {
	if m.auth == nil {
		return nil, nil
	}
	return m.auth.Env(ctx, m.log, scratchDir)
}

// Refresh implements §4.2: if a bare mirror already exists, prune-fetch it;
// on failure, or if it is absent/corrupt, remove the directory and perform
// a fresh mirror clone.
func (m *SourceMirror) Refresh(ctx context.Context, scratchDir string) error {
	env, err := m.authEnv(ctx, scratchDir)
	if err != nil {
		return newErr(SourceUnavailable, err, "unable to build source auth env")
	}

	usable, err := m.isUsable(ctx)
	if err != nil {
		return newErr(SourceUnavailable, err, "unable to check source mirror")
	}

	if usable {
		if _, ferr := m.fetch(ctx, env); ferr == nil {
			return nil
		} else {
			m.log.Warn("source mirror fetch failed, recreating", "err", ferr)
		}
	}

	return m.freshClone(ctx, env)
}

func (m *SourceMirror) isUsable(ctx context.Context) (bool, error) {
	empty, err := fsutil.DirIsEmpty(m.dir)
	if err != nil {
		return false, nil //nolint:nilerr // missing dir is "not usable", not an error
	}
	if empty {
		return false, nil
	}
	if _, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "rev-parse", "--is-bare-repository"); err != nil {
		return false, nil
	}
	if stdout, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "config", "--get", "remote.origin.url"); err != nil || stdout != m.remote {
		return false, nil
	}
	if _, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "fsck", "--no-progress", "--connectivity-only"); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *SourceMirror) fetch(ctx context.Context, env []string) ([]string, error) {
	out, err := gitexec.RunGit(ctx, m.log, env, m.dir, "fetch", "origin", "--prune", "--no-progress", "--porcelain")
	if err != nil {
		return nil, err
	}
	return fsutil.UpdatedRefs(out), nil
}

func (m *SourceMirror) freshClone(ctx context.Context, env []string) error {
	m.log.Info("source mirror missing or corrupt, cloning fresh", "path", m.dir)

	if err := fsutil.ReCreate(m.dir); err != nil {
		return newErr(SourceUnavailable, err, "unable to recreate source mirror dir")
	}

	args := []string{"clone", "--mirror"}
	if m.noHardlinks {
		args = append(args, "--no-hardlinks")
	}
	args = append(args, m.remote, m.dir)

	if _, err := gitexec.RunGit(ctx, m.log, env, "", args...); err != nil {
		return newErr(SourceUnavailable, err, "unable to clone source mirror")
	}

	if _, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "config", "remote.origin.fetch", defaultFetchRefSpec); err != nil {
		return newErr(SourceUnavailable, err, "unable to set mirror fetch refspec")
	}

	return nil
}

// Branches enumerates refs/heads/* in the mirror, returning short branch
// names. Per §4.2, an empty result fails the run.
func (m *SourceMirror) Branches(ctx context.Context) ([]string, error) {
	out, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "for-each-ref", "--format=%(refname)", "refs/heads/")
	if err != nil {
		return nil, newErr(SourceUnavailable, err, "unable to enumerate source branches")
	}

	var branches []string
	for _, ref := range splitNonEmptyLines(out) {
		branches = append(branches, strings.TrimPrefix(ref, "refs/heads/"))
	}

	if len(branches) == 0 {
		return nil, newErr(SourceUnavailable, nil, "source repository has no branches")
	}

	return branches, nil
}

// Tags enumerates refs/tags/* in the mirror, returning short tag names.
// Unlike Branches, an empty result is not a failure - a repository with no
// tags is ordinary.
func (m *SourceMirror) Tags(ctx context.Context) ([]string, error) {
	out, err := gitexec.RunGit(ctx, m.log, nil, m.dir, "for-each-ref", "--format=%(refname)", "refs/tags/")
	if err != nil {
		return nil, newErr(SourceUnavailable, err, "unable to enumerate source tags")
	}

	var tags []string
	for _, ref := range splitNonEmptyLines(out) {
		tags = append(tags, strings.TrimPrefix(ref, "refs/tags/"))
	}
	return tags, nil
}

// Dir returns the local path of the mirror, used as the worker repo's
// `source` remote (§4.3: it points at the local mirror path, not the
// user-supplied URL).
func (m *SourceMirror) Dir() string { return m.dir }
