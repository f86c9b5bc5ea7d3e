package mirror

import (
	"fmt"
	"log/slog"

	"context"

	"github.com/utilitywarehouse/git-filter-mirror/internal/config"
	"github.com/utilitywarehouse/git-filter-mirror/internal/refmatch"
)

// convertedTagTemplate is handed to the rewrite engine as its tag-name-
// filter: it rewrites an input tag name <t> to filter-branch/converted-tags/
// <t> (§4.6.6). The engine substitutes %s with the source tag's short name.
const convertedTagTemplate = "filter-branch/converted-tags/%s"

// BranchOutcome summarizes one branch's pass through C6 for the end-of-run
// summary and metrics.
type BranchOutcome struct {
	Branch          string
	Skipped         bool // delta was empty, nothing to rewrite (§4.6.3)
	Stderr          string
	TagsAutoMapped  int // converted by the rewrite engine itself
	TagsWalkMapped  int // converted by C7's ancestor walk
	TagsUnmappable  int
}

// RewriteBranch implements C6 end to end for one in-scope branch.
func RewriteBranch(
	ctx context.Context,
	w *WorkerRepo,
	branch string,
	directives []Directive,
	tagPolicy config.TagPolicy,
	tagMatcher *refmatch.Matcher,
	tagMapper *TagMapper,
	scratchDir string,
	engine RewriteEngine,
	log *slog.Logger,
) (*BranchOutcome, error) {
	log = log.With("branch", branch)
	outcome := &BranchOutcome{Branch: branch}

	// 1-2: fetch delta, stage as current branch.
	fetchHead, err := w.FetchBranchDelta(ctx, branch)
	if err != nil {
		return nil, err
	}

	// 3: compute range; last == FETCH_HEAD means nothing new (idempotence,
	// delta minimality - §8 properties 1 and 3).
	last, err := w.FilteredMarker(ctx, branch)
	if err != nil {
		return nil, err
	}
	if last == fetchHead {
		log.Log(ctx, -8, "branch already up to date, nothing to rewrite", "at", fetchHead)
		outcome.Skipped = true
		return outcome, nil
	}

	// 4: prepare result branch + clear scratch dir.
	if err := w.PrepareResultBranch(ctx, branch, fetchHead, scratchDir); err != nil {
		return nil, err
	}

	// 5: enumerate in-scope tags reachable from the branch tip.
	var inScopeTags []string
	if tagPolicy != config.TagPolicyNone {
		reachable, err := w.TagsReachableFrom(ctx, refFilterResult(branch))
		if err != nil {
			return nil, err
		}
		for _, t := range reachable {
			if tagMatcher.Passes(t) {
				inScopeTags = append(inScopeTags, t)
			}
		}
	}

	// 6: drive the rewrite engine.
	rangeSpec := refFilterResult(branch)
	if last != "" {
		rangeSpec = last + ".." + refFilterResult(branch)
	}

	opts := engineOptions{
		directives:         directives,
		stateBranch:        stateRef,
		originalsNamespace: refOriginalsNamespace(branch),
		rangeSpec:          rangeSpec,
	}
	if len(inScopeTags) > 0 {
		opts.tagNameFilter = convertedTagTemplate
	}

	stderr, err := engine.invoke(ctx, log, w.dir, opts)
	outcome.Stderr = stderr
	if err != nil {
		// 7: fatal, preserve worker state for debugging - do not advance
		// the filtered marker.
		return nil, err
	}

	// 8: tag remapping for unvisited tags, tags-plan all only.
	if tagPolicy == config.TagPolicyAll && len(inScopeTags) > 0 {
		produced, err := w.ConvertedTagsProduced(ctx)
		if err != nil {
			return nil, err
		}
		outcome.TagsAutoMapped = len(produced)

		for _, t := range inScopeTags {
			if produced[t] {
				continue
			}
			if err := tagMapper.MapTag(ctx, t); err != nil {
				if e, ok := err.(*Error); ok && e.Kind == TagUnmappable {
					outcome.TagsUnmappable++
					log.Warn("tag unmappable", "tag", t, "err", err)
					continue
				}
				return nil, err
			}
			if w.ConvertedTagExists(ctx, t) {
				outcome.TagsWalkMapped++
			}
		}
	} else if tagPolicy == config.TagPolicyVisited {
		produced, err := w.ConvertedTagsProduced(ctx)
		if err != nil {
			return nil, err
		}
		outcome.TagsAutoMapped = len(produced)
	}

	// 9: advance the filtered marker, only after a successful rewrite.
	if err := w.AdvanceFilteredMarker(ctx, branch, fetchHead); err != nil {
		return nil, err
	}

	return outcome, nil
}

func (o *BranchOutcome) String() string {
	return fmt.Sprintf("branch=%s skipped=%v auto-mapped=%d walk-mapped=%d unmappable=%d",
		o.Branch, o.Skipped, o.TagsAutoMapped, o.TagsWalkMapped, o.TagsUnmappable)
}
