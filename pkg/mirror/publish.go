package mirror

import (
	"context"
	"fmt"

	"github.com/utilitywarehouse/git-filter-mirror/internal/config"
)

// Publish implements C8: compose a single refspec list (branch updates plus,
// when tag policy != none, tag updates for every source tag that passed the
// matcher and has a materialized converted tag) and push it to the
// destination in one operation.
func Publish(ctx context.Context, w *WorkerRepo, scratchDir string, processedBranches []string, tagPolicy config.TagPolicy, publishableTags []string, atomic bool) error {
	var refspecs []string

	for _, b := range processedBranches {
		refspecs = append(refspecs, fmt.Sprintf("%s:refs/heads/%s", refFilterResult(b), b))
	}

	if tagPolicy != config.TagPolicyNone {
		for _, t := range publishableTags {
			if !w.ConvertedTagExists(ctx, t) {
				continue
			}
			refspecs = append(refspecs, fmt.Sprintf("%s:refs/tags/%s", refConvertedTag(t), t))
		}
	}

	return w.Push(ctx, scratchDir, refspecs, atomic)
}
