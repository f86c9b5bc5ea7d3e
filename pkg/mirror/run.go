package mirror

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/utilitywarehouse/git-filter-mirror/internal/config"
	"github.com/utilitywarehouse/git-filter-mirror/internal/lock"
	"github.com/utilitywarehouse/git-filter-mirror/internal/metrics"
	"github.com/utilitywarehouse/git-filter-mirror/internal/refmatch"
	"github.com/utilitywarehouse/git-filter-mirror/internal/workarea"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/giturl"
)

// Run drives one full invocation of the pipeline end to end: C2 through C9,
// in the order §4 lays them out. cfg is assumed already defaulted
// (cfg.ApplyDefaults) by the caller. m may be nil.
func Run(ctx context.Context, cfg config.RunConfig, log *slog.Logger, m *metrics.Metrics) error {
	start := time.Now()
	log = log.With("source", cfg.Source, "destination", cfg.Destination)

	err := run(ctx, cfg, log, m)
	m.RecordRun(cfg.Destination, err == nil, start)
	return err
}

func run(ctx context.Context, cfg config.RunConfig, log *slog.Logger, m *metrics.Metrics) error {
	if err := cfg.ValidateUsage(); err != nil {
		return newErr(UsageError, err, "invalid run configuration")
	}
	if err := cfg.ValidatePolicy(); err != nil {
		return newErr(ConfigConflict, err, "conflicting run configuration")
	}

	directives, err := ValidateFilterSpec(cfg.FilterSpec)
	if err != nil {
		return err
	}

	engine := RewriteEngine{}
	if err := engine.Resolve(); err != nil {
		return err
	}

	branchMatcher, merr := refmatch.New(cfg.BranchWhitelist, cfg.BranchBlacklist)
	if merr != nil {
		return newErr(UsageError, merr, "invalid branch whitelist/blacklist")
	}
	tagMatcher, merr := refmatch.New(cfg.TagWhitelist, cfg.TagBlacklist)
	if merr != nil {
		return newErr(UsageError, merr, "invalid tag whitelist/blacklist")
	}

	layout := workarea.New(cfg.Workdir, giturl.CanonicalKey(cfg.Source), giturl.CanonicalKey(cfg.Destination))
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return newErr(EnvironmentError, err, "unable to prepare workdir %q", cfg.Workdir)
	}

	guard, err := acquireGuard(ctx, log, layout.LockPath, cfg.NoLock)
	if err != nil {
		return err
	}
	defer guard.Release()

	sourceMirror := NewSourceMirror(layout.SourceDir, cfg.Source, &cfg.SourceAuth, cfg.NoHardlinks, log)
	if err := sourceMirror.Refresh(ctx, layout.FilterScratchDir); err != nil {
		return err
	}

	allBranches, err := sourceMirror.Branches(ctx)
	if err != nil {
		return err
	}

	var inScopeBranches []string
	inScope := map[string]bool{}
	for _, b := range allBranches {
		if branchMatcher.Passes(b) {
			inScopeBranches = append(inScopeBranches, b)
			inScope[b] = true
		}
	}

	worker := NewWorkerRepo(layout.WorkerDir, sourceMirror.Dir(), cfg.Destination, &cfg.DestinationAuth, log)
	if err := worker.Init(ctx, layout.FilterScratchDir); err != nil {
		return err
	}

	if err := PruneWorkerStaleTags(ctx, worker, sourceMirror, tagMatcher, cfg.PruneTags, log); err != nil {
		return err
	}

	tagMapper := NewTagMapper(worker, layout.MapSnapshotPath, cfg.TagsMaxHistoryLookup, log)

	var processed []string
	for _, branch := range inScopeBranches {
		outcome, err := RewriteBranch(ctx, worker, branch, directives, cfg.TagsPlan, tagMatcher, tagMapper, layout.FilterScratchDir, engine, log)
		m.RecordBranchRewrite(cfg.Destination, branch, err == nil)
		if err != nil {
			return err
		}
		log.Info("branch rewrite complete", "summary", outcome.String())
		processed = append(processed, branch)
	}

	seenSourceTags, err := sourceMirror.Tags(ctx)
	if err != nil {
		return err
	}

	seenSourceTagSet := make(map[string]bool, len(seenSourceTags))
	var publishableTags []string
	for _, t := range seenSourceTags {
		seenSourceTagSet[t] = true
		if tagMatcher.Passes(t) {
			publishableTags = append(publishableTags, t)
		}
	}

	if err := Publish(ctx, worker, layout.FilterScratchDir, processed, cfg.TagsPlan, publishableTags, !cfg.NoAtomic); err != nil {
		m.RecordPush(cfg.Destination, "publish", false)
		return err
	}
	m.RecordPush(cfg.Destination, "publish", true)

	pruneResult, err := Prune(ctx, worker, layout.FilterScratchDir, tagMatcher, seenSourceTagSet, inScope, cfg.PruneBranches, cfg.PruneTags, log)
	if err != nil {
		m.RecordPush(cfg.Destination, "prune", false)
		return err
	}
	m.RecordPush(cfg.Destination, "prune", true)

	if m != nil {
		if err := worker.MaterializeMap(ctx, layout.MapSnapshotPath); err == nil {
			if mapping, err := LoadMapping(layout.MapSnapshotPath); err == nil {
				m.RecordMappedCommits(cfg.Destination, mapping.Len())
			}
		}
	}

	log.Info("run complete",
		"branches_rewritten", len(processed),
		"tags_deleted", pruneResult.TagsDeleted,
		"branches_deleted", pruneResult.BranchesDeleted,
		"protected_head", pruneResult.ProtectedHead,
	)

	return nil
}

func acquireGuard(ctx context.Context, log *slog.Logger, path string, noLock bool) (*lock.Guard, error) {
	if noLock {
		log.Warn("exclusive-run locking disabled (-no-lock), concurrency safety is the operator's responsibility")
		return lock.NoopGuard(), nil
	}
	guard, err := lock.Acquire(ctx, log, path, 0)
	if err != nil {
		return nil, newErr(EnvironmentError, err, "unable to acquire exclusive run lock %q", path)
	}
	return guard, nil
}
