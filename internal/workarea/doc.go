// Package workarea computes the on-disk layout described in spec.md §3: the
// source mirror directory, the worker scratch repo directory, the exclusive
// run lock sentinel, and the transient per-invocation scratch paths, all
// named from a content digest of the repository URLs involved so the layout
// is stable across runs and safe to delete and recreate.
package workarea
