package mirror

import (
	"context"
	"log/slog"
)

// TagMapper implements C7: for a source tag not auto-mapped by the rewrite
// engine, walk its commit's ancestors in date order looking for one the
// mapping already covers, and land the converted tag there.
//
// A TagMapper is scoped to one run: MaterializeMap is only ever called once
// (§4.7 step 2, "on first use in a run"), and the parsed Mapping is reused
// for every tag looked up afterwards.
type TagMapper struct {
	worker       *WorkerRepo
	mapPath      string
	maxLookup    int
	materialized bool
	mapping      Mapping
	log          *slog.Logger
}

// NewTagMapper returns a TagMapper bound to worker, snapshotting filter.map
// at mapPath on first use and walking at most maxLookup ancestors per tag.
func NewTagMapper(worker *WorkerRepo, mapPath string, maxLookup int, log *slog.Logger) *TagMapper {
	return &TagMapper{worker: worker, mapPath: mapPath, maxLookup: maxLookup, log: log.With("component", "tagmap")}
}

func (t *TagMapper) ensureMap(ctx context.Context) error {
	if t.materialized {
		return nil
	}
	if err := t.worker.MaterializeMap(ctx, t.mapPath); err != nil {
		return newErr(WorkerCorrupt, err, "unable to materialize filter.map snapshot")
	}
	mapping, err := LoadMapping(t.mapPath)
	if err != nil {
		return newErr(WorkerCorrupt, err, "unable to parse filter.map snapshot")
	}
	t.mapping = mapping
	t.materialized = true
	return nil
}

// MapTag implements §4.7: resolve t to its source commit, walk up to
// maxLookup ancestors in date order, and land the converted tag on the
// first one with a mapping entry. If none is found within budget, it logs
// a TagUnmappable warning and returns nil (the tag is simply skipped, this
// is not a fatal error per §7).
func (t *TagMapper) MapTag(ctx context.Context, tag string) error {
	if err := t.ensureMap(ctx); err != nil {
		return err
	}

	c0, err := t.worker.ResolveSourceTag(ctx, tag)
	if err != nil || c0 == "" {
		return newErr(TagUnmappable, err, "unable to resolve source tag %q to a commit", tag)
	}

	if rewritten, ok := t.mapping[c0]; ok {
		return t.worker.SetConvertedTag(ctx, tag, rewritten)
	}

	ancestors, err := t.worker.AncestorsInDateOrder(ctx, c0, t.maxLookup)
	if err != nil {
		return err
	}

	for _, ancestor := range ancestors {
		if rewritten, ok := t.mapping[ancestor]; ok {
			t.log.Info("tag mapped to nearest ancestor", "tag", tag, "source", c0, "ancestor", ancestor)
			return t.worker.SetConvertedTag(ctx, tag, rewritten)
		}
	}

	t.log.Warn("tag could not be mapped within lookup budget, skipping", "tag", tag, "source", c0, "lookup", t.maxLookup)
	return nil
}
