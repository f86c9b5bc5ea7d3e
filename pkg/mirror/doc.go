// Package mirror drives one incremental history-rewrite run: refreshing a
// bare mirror of a source repository (C2), maintaining a long-lived worker
// repository with a persistent commit mapping (C3), rewriting each in-scope
// branch through an external rewrite engine (C6), remapping tags onto
// rewritten commits (C7), publishing the result to a destination repository
// (C8), and pruning destination refs that fell out of scope (C9).
//
// # Logging
//
// Every long-lived type here holds a *slog.Logger, threaded in via
// constructor and narrowed with .With(...) context (source/destination, the
// mirror or worker path, the branch) as work descends, matching the logging
// shape of
// git-mirror's own Repository/RepoPool types.
//
// # Usage
//
//	cfg := config.RunConfig{
//		Source:      "git@github.com:example/source.git",
//		Destination: "git@github.com:example/destination.git",
//		FilterSpec:  []string{"--prune-empty"},
//	}
//	cfg.ApplyDefaults()
//	if err := Run(ctx, cfg, logger, nil); err != nil {
//		log.Fatal(err)
//	}
package mirror
