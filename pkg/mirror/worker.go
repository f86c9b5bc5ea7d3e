package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utilitywarehouse/git-filter-mirror/internal/fsutil"
	"github.com/utilitywarehouse/git-filter-mirror/internal/gitexec"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/auth"
)

// headSentinel is the ref HEAD is detached to when no branch is active
// (§3), so a stray fetch/reset in the bare worker repo can't land on a
// dangling work tree - the repo is bare regardless, but keeping HEAD off
// any real branch keeps `git symbolic-ref`/`git branch` output unambiguous.
const headSentinel = "refs/none"

// stateRef is the ref whose tree carries filter.map, the authoritative,
// run-spanning commit mapping (§3).
const stateRef = "refs/filter-branch/state"

func refSourceRemote(branch string) string       { return "refs/remotes/source/" + branch }
func refFilterSource(branch string) string       { return "refs/heads/filter-branch/source/" + branch }
func refFilterResult(branch string) string       { return "refs/heads/filter-branch/result/" + branch }
func refFilterFiltered(branch string) string     { return "refs/heads/filter-branch/filtered/" + branch }
func refOriginalsNamespace(branch string) string { return "refs/filter-branch/originals/" + branch }
func refConvertedTag(tag string) string          { return "refs/tags/filter-branch/converted-tags/" + tag }

// convertedTagName strips the converted-tags namespace off a full ref,
// returning the original source tag name it stands for.
func convertedTagName(ref string) (string, bool) {
	const prefix = "refs/tags/filter-branch/converted-tags/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}

// WorkerRepo is the long-lived bare scratch repository of C3: it holds the
// `source`/`destination` remotes, the filter-branch ref namespace, and the
// persistent mapping state ref.
type WorkerRepo struct {
	dir             string
	sourceMirrorDir string
	destinationURL  string
	destinationAuth *auth.Auth
	log             *slog.Logger
}

// NewWorkerRepo returns a handle on the worker repo at dir. Call Init
// before using it.
func NewWorkerRepo(dir, sourceMirrorDir, destinationURL string, destinationAuth *auth.Auth, log *slog.Logger) *WorkerRepo {
	return &WorkerRepo{
		dir:             dir,
		sourceMirrorDir: sourceMirrorDir,
		destinationURL:  destinationURL,
		destinationAuth: destinationAuth,
		log:             log.With("worker", dir),
	}
}

func (w *WorkerRepo) git(ctx context.Context, args ...string) (string, error) {
	return gitexec.RunGit(ctx, w.log, nil, w.dir, args...)
}

func (w *WorkerRepo) destinationEnv(ctx context.Context, scratchDir string) ([]string, error) {
	if w.destinationAuth == nil {
		return nil, nil
	}
	return w.destinationAuth.Env(ctx, w.log, scratchDir)
}

// Init implements §4.3: create the bare repo if missing, wire up the
// `source` and `destination` remotes, fetch+prune `destination`, and
// validate the result. On any initialization failure the partial worker
// repo is removed so the next run starts clean.
func (w *WorkerRepo) Init(ctx context.Context, scratchDir string) error {
	valid, err := w.isUsable(ctx)
	if err != nil {
		return newErr(WorkerCorrupt, err, "unable to check worker repo %q", w.dir)
	}
	if valid {
		w.log.Log(ctx, -8, "existing worker repo is valid", "path", w.dir)
		return w.ensureRemotes(ctx, scratchDir)
	}

	w.log.Info("(re)initializing worker repo", "path", w.dir)
	if err := fsutil.ReCreate(w.dir); err != nil {
		return newErr(WorkerCorrupt, err, "unable to recreate worker repo dir")
	}

	if _, err := w.git(ctx, "init", "-q", "--bare"); err != nil {
		w.cleanup()
		return newErr(WorkerCorrupt, err, "unable to init worker repo")
	}
	if _, err := w.git(ctx, "symbolic-ref", "HEAD", headSentinel); err != nil {
		w.cleanup()
		return newErr(WorkerCorrupt, err, "unable to detach worker repo HEAD")
	}

	if err := w.ensureRemotes(ctx, scratchDir); err != nil {
		w.cleanup()
		return err
	}

	return nil
}

func (w *WorkerRepo) cleanup() {
	if err := fsutil.RemoveIfExists(w.dir); err != nil {
		w.log.Error("failed to remove partial worker repo", "err", err)
	}
}

func (w *WorkerRepo) isUsable(ctx context.Context) (bool, error) {
	empty, err := fsutil.DirIsEmpty(w.dir)
	if err != nil {
		return false, nil //nolint:nilerr // missing dir is "not usable", not an error
	}
	if empty {
		return false, nil
	}
	if _, err := w.git(ctx, "rev-parse", "--is-bare-repository"); err != nil {
		return false, nil
	}
	if _, err := w.git(ctx, "rev-parse", "--git-dir"); err != nil {
		return false, nil
	}
	return true, nil
}

func (w *WorkerRepo) ensureRemotes(ctx context.Context, scratchDir string) error {
	if _, err := w.git(ctx, "remote", "get-url", "source"); err != nil {
		if _, err := w.git(ctx, "remote", "add", "source", w.sourceMirrorDir); err != nil {
			return newErr(WorkerCorrupt, err, "unable to add source remote")
		}
	}
	if _, err := w.git(ctx, "remote", "get-url", "destination"); err != nil {
		if _, err := w.git(ctx, "remote", "add", "destination", w.destinationURL); err != nil {
			return newErr(WorkerCorrupt, err, "unable to add destination remote")
		}
	}

	env, err := w.destinationEnv(ctx, scratchDir)
	if err != nil {
		return newErr(WorkerCorrupt, err, "unable to build destination auth env")
	}
	if _, err := gitexec.RunGit(ctx, w.log, env, w.dir, "fetch", "destination", "--prune", "--no-progress", "--no-tags"); err != nil {
		return newErr(WorkerCorrupt, err, "unable to fetch destination remote")
	}

	return nil
}

// FetchBranchDelta implements §4.6 steps 1-2: fetch branch from source into
// the worker repo, force tags, then stage it as the branch the rewrite
// engine will see. Returns the fetched source tip (FETCH_HEAD).
func (w *WorkerRepo) FetchBranchDelta(ctx context.Context, branch string) (string, error) {
	refspec := fmt.Sprintf("+refs/heads/%[1]s:refs/remotes/source/%[1]s", branch)
	if _, err := w.git(ctx, "fetch", "source", "--prune", "--no-progress", "--force", "--tags", refspec); err != nil {
		return "", newErr(SourceUnavailable, err, "unable to fetch branch %q from source remote", branch)
	}

	fetchHead, err := w.git(ctx, "rev-parse", refSourceRemote(branch))
	if err != nil {
		return "", newErr(SourceUnavailable, err, "unable to resolve fetched tip of branch %q", branch)
	}

	if _, err := w.git(ctx, "update-ref", refFilterSource(branch), fetchHead); err != nil {
		return "", newErr(WorkerCorrupt, err, "unable to stage filter-branch/source/%s", branch)
	}
	if _, err := w.git(ctx, "symbolic-ref", "HEAD", refFilterSource(branch)); err != nil {
		return "", newErr(WorkerCorrupt, err, "unable to detach HEAD onto branch %q", branch)
	}

	return fetchHead, nil
}

// FilteredMarker returns the source commit most recently successfully
// rewritten for branch, or "" if the branch has never been rewritten.
func (w *WorkerRepo) FilteredMarker(ctx context.Context, branch string) (string, error) {
	sha, err := w.git(ctx, "rev-parse", "--verify", "--quiet", refFilterFiltered(branch))
	if err != nil {
		return "", nil
	}
	return sha, nil
}

// AdvanceFilteredMarker implements §4.6.9: only called after a successful
// rewrite.
func (w *WorkerRepo) AdvanceFilteredMarker(ctx context.Context, branch, fetchHead string) error {
	if _, err := w.git(ctx, "update-ref", refFilterFiltered(branch), fetchHead); err != nil {
		return newErr(WorkerCorrupt, err, "unable to advance filtered marker for branch %q", branch)
	}
	return nil
}

// PrepareResultBranch implements §4.6.4: drop any stale backup-originals
// ref for branch, force the result branch to fetchHead, and clear the
// transient rewrite scratch directory.
func (w *WorkerRepo) PrepareResultBranch(ctx context.Context, branch, fetchHead, scratchDir string) error {
	_, _ = w.git(ctx, "update-ref", "-d", refOriginalsNamespace(branch))

	if _, err := w.git(ctx, "update-ref", refFilterResult(branch), fetchHead); err != nil {
		return newErr(WorkerCorrupt, err, "unable to set result branch for %q", branch)
	}

	if err := fsutil.ReCreate(scratchDir); err != nil {
		return newErr(WorkerCorrupt, err, "unable to clear filter-branch scratch dir")
	}

	return nil
}

// TagsReachableFrom returns the tags (short names under refs/tags/) that
// are merged into (reachable from) ref.
func (w *WorkerRepo) TagsReachableFrom(ctx context.Context, ref string) ([]string, error) {
	out, err := w.git(ctx, "tag", "--merged", ref)
	if err != nil {
		return nil, newErr(WorkerCorrupt, err, "unable to enumerate tags merged into %q", ref)
	}
	return splitNonEmptyLines(out), nil
}

// ConvertedTagsProduced returns the source tag names for which the rewrite
// engine already created a refs/tags/filter-branch/converted-tags/<t> ref.
func (w *WorkerRepo) ConvertedTagsProduced(ctx context.Context) (map[string]bool, error) {
	out, err := w.git(ctx, "for-each-ref", "--format=%(refname)", "refs/tags/filter-branch/converted-tags/")
	if err != nil {
		return nil, newErr(WorkerCorrupt, err, "unable to enumerate converted tags")
	}
	produced := map[string]bool{}
	for _, ref := range splitNonEmptyLines(out) {
		if name, ok := convertedTagName(ref); ok {
			produced[name] = true
		}
	}
	return produced, nil
}

// ConvertedTagExists reports whether a converted tag has been materialized
// for source tag t.
func (w *WorkerRepo) ConvertedTagExists(ctx context.Context, t string) bool {
	_, err := w.git(ctx, "rev-parse", "--verify", "--quiet", refConvertedTag(t)+"^{}")
	return err == nil
}

// SetConvertedTag force-creates refs/tags/filter-branch/converted-tags/<t>
// pointing at commit.
func (w *WorkerRepo) SetConvertedTag(ctx context.Context, t, commit string) error {
	_, err := w.git(ctx, "update-ref", refConvertedTag(t), commit)
	return err
}

// DeleteConvertedTag removes a worker-local converted tag, if present.
func (w *WorkerRepo) DeleteConvertedTag(ctx context.Context, t string) error {
	_, err := w.git(ctx, "update-ref", "-d", refConvertedTag(t))
	return err
}

// ResolveSourceTag resolves source tag t (as fetched into refs/tags by the
// branch fetch's --tags) to its commit.
func (w *WorkerRepo) ResolveSourceTag(ctx context.Context, t string) (string, error) {
	return w.git(ctx, "rev-parse", "--verify", "--quiet", "refs/tags/"+t+"^{}")
}

// AncestorsInDateOrder returns up to limit first-parent-and-merge ancestors
// of commit, nearest first, for C7's lookup walk.
func (w *WorkerRepo) AncestorsInDateOrder(ctx context.Context, commit string, limit int) ([]string, error) {
	out, err := w.git(ctx, "rev-list", "--date-order", fmt.Sprintf("--max-count=%d", limit), commit)
	if err != nil {
		return nil, newErr(WorkerCorrupt, err, "unable to walk ancestors of %q", commit)
	}
	return splitNonEmptyLines(out), nil
}

// ConvertedTagNames returns the source tag names the worker currently has a
// converted-tags ref for.
func (w *WorkerRepo) ConvertedTagNames(ctx context.Context) ([]string, error) {
	produced, err := w.ConvertedTagsProduced(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(produced))
	for t := range produced {
		names = append(names, t)
	}
	return names, nil
}

// destRefLine is one `git ls-remote` output row: <sha>\t<ref>.
type destRefLine struct {
	sha string
	ref string
}

func (w *WorkerRepo) lsRemoteDestination(ctx context.Context, scratchDir string, pattern string) ([]destRefLine, error) {
	env, err := w.destinationEnv(ctx, scratchDir)
	if err != nil {
		return nil, newErr(PushFailure, err, "unable to build destination auth env")
	}
	out, err := gitexec.RunGit(ctx, w.log, env, w.dir, "ls-remote", "--refs", "destination", pattern)
	if err != nil {
		return nil, newErr(PushFailure, err, "unable to list destination refs")
	}

	var lines []destRefLine
	for _, l := range splitNonEmptyLines(out) {
		sha, ref, ok := strings.Cut(l, "\t")
		if !ok {
			continue
		}
		lines = append(lines, destRefLine{sha: sha, ref: ref})
	}
	return lines, nil
}

// DestinationTags lists the destination's tags (--refs omits the peeled ^{}
// entries of annotated tags, so each tag appears once).
func (w *WorkerRepo) DestinationTags(ctx context.Context, scratchDir string) ([]string, error) {
	lines, err := w.lsRemoteDestination(ctx, scratchDir, "refs/tags/*")
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, l := range lines {
		tags = append(tags, strings.TrimPrefix(l.ref, "refs/tags/"))
	}
	return tags, nil
}

// DestinationBranches lists the destination's branches.
func (w *WorkerRepo) DestinationBranches(ctx context.Context, scratchDir string) ([]string, error) {
	lines, err := w.lsRemoteDestination(ctx, scratchDir, "refs/heads/*")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, l := range lines {
		branches = append(branches, strings.TrimPrefix(l.ref, "refs/heads/"))
	}
	return branches, nil
}

// DestinationHeadBranch resolves the destination's current HEAD branch, if
// it has one (a brand-new empty destination has none).
func (w *WorkerRepo) DestinationHeadBranch(ctx context.Context, scratchDir string) (string, error) {
	env, err := w.destinationEnv(ctx, scratchDir)
	if err != nil {
		return "", newErr(PushFailure, err, "unable to build destination auth env")
	}
	out, err := gitexec.RunGit(ctx, w.log, env, w.dir, "ls-remote", "--symref", "destination", "HEAD")
	if err != nil {
		return "", nil //nolint:nilerr // no HEAD yet is not an error (empty destination)
	}
	for _, l := range splitNonEmptyLines(out) {
		if strings.HasPrefix(l, "ref:") {
			fields := strings.Fields(l)
			if len(fields) >= 2 {
				return strings.TrimPrefix(fields[1], "refs/heads/"), nil
			}
		}
	}
	return "", nil
}

// Push publishes refspecs to the destination remote in one operation, force
// and atomic per atomic flag. An empty refspec list is a no-op.
func (w *WorkerRepo) Push(ctx context.Context, scratchDir string, refspecs []string, atomic bool) error {
	if len(refspecs) == 0 {
		return nil
	}
	env, err := w.destinationEnv(ctx, scratchDir)
	if err != nil {
		return newErr(PushFailure, err, "unable to build destination auth env")
	}

	args := []string{"push", "destination", "--force"}
	if atomic {
		args = append(args, "--atomic")
	}
	args = append(args, refspecs...)

	if _, err := gitexec.RunGit(ctx, w.log, env, w.dir, args...); err != nil {
		return newErr(PushFailure, err, "destination push failed")
	}
	return nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
