package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utilitywarehouse/git-filter-mirror/internal/refmatch"
)

// PruneWorkerStaleTags implements §4.9's pre-rewrite cleanup: when tag
// pruning is enabled, drop any worker-local converted tags that either fail
// the tag matcher or no longer exist at the source remote, so they are
// never republished this run.
func PruneWorkerStaleTags(ctx context.Context, w *WorkerRepo, sourceMirror *SourceMirror, tagMatcher *refmatch.Matcher, pruneTags bool, log *slog.Logger) error {
	if !pruneTags {
		return nil
	}

	converted, err := w.ConvertedTagNames(ctx)
	if err != nil {
		return err
	}

	sourceTags, err := sourceMirror.Tags(ctx)
	if err != nil {
		return err
	}
	sourceTagSet := make(map[string]bool, len(sourceTags))
	for _, t := range sourceTags {
		sourceTagSet[t] = true
	}

	for _, t := range converted {
		if tagMatcher.Passes(t) && sourceTagSet[t] {
			continue
		}
		log.Info("dropping stale worker-local converted tag", "tag", t)
		if err := w.DeleteConvertedTag(ctx, t); err != nil {
			return newErr(WorkerCorrupt, err, "unable to drop stale converted tag %q", t)
		}
	}

	return nil
}

// PruneResult records what Prune decided, for the end-of-run summary.
type PruneResult struct {
	TagsDeleted     []string
	BranchesDeleted []string
	ProtectedHead   string // non-empty if a branch was skipped for being destination HEAD
}

// Prune implements C9's two post-publish passes: compute the destination
// refs to delete and push the combined deletions in one operation. If
// neither pass is enabled, or the combined deletion set is empty, no push
// is made.
func Prune(
	ctx context.Context,
	w *WorkerRepo,
	scratchDir string,
	tagMatcher *refmatch.Matcher,
	seenSourceTags map[string]bool,
	inScopeBranches map[string]bool,
	pruneBranches, pruneTags bool,
	log *slog.Logger,
) (*PruneResult, error) {
	res := &PruneResult{}
	var refspecs []string

	if pruneTags {
		destTags, err := w.DestinationTags(ctx, scratchDir)
		if err != nil {
			return nil, err
		}
		for _, t := range destTags {
			if !tagMatcher.Passes(t) || !seenSourceTags[t] {
				res.TagsDeleted = append(res.TagsDeleted, t)
				refspecs = append(refspecs, ":refs/tags/"+t)
			}
		}
	}

	if pruneBranches {
		destBranches, err := w.DestinationBranches(ctx, scratchDir)
		if err != nil {
			return nil, err
		}
		headBranch, err := w.DestinationHeadBranch(ctx, scratchDir)
		if err != nil {
			return nil, err
		}
		for _, b := range destBranches {
			if inScopeBranches[b] {
				continue
			}
			if b == headBranch {
				res.ProtectedHead = b
				log.Warn("skipping prune of destination HEAD branch", "branch", b)
				continue
			}
			res.BranchesDeleted = append(res.BranchesDeleted, b)
			refspecs = append(refspecs, fmt.Sprintf(":refs/heads/%s", b))
		}
	}

	if len(refspecs) == 0 {
		return res, nil
	}

	if err := w.Push(ctx, scratchDir, refspecs, true); err != nil {
		return nil, err
	}

	return res, nil
}
