package mirror

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/utilitywarehouse/git-filter-mirror/internal/gitexec"
)

// defaultEngineBinary is the rewrite engine resolved via $PATH when no
// override is given. Treated as external per the Non-goals: this core
// drives an existing rewrite engine rather than inventing one, and the
// default argv shape below is git-filter-repo-compatible.
const defaultEngineBinary = "git-filter-repo"

// nothingToRewriteMarker is the stderr line the rewrite engine emits on
// exit code 1 when a non-empty range produced no new commits - the escape
// hatch of §4.6.7 that must not be mistaken for a fatal failure.
const nothingToRewriteMarker = "Nothing new to rewrite"

// RewriteEngine drives the external history-rewrite tool. The zero value
// resolves defaultEngineBinary via $PATH; tests can point Binary at a fake
// script to control argv/exit-code/stderr without needing the real engine
// installed.
type RewriteEngine struct {
	Binary string
}

// engineOptions are the core-supplied options of §4.6.6, layered on top of
// the user's validated filter spec.
type engineOptions struct {
	directives        []Directive
	stateBranch       string
	originalsNamespace string
	rangeSpec         string
	tagNameFilter     string // empty when the tag set is empty (§4.6.6)
}

func (e RewriteEngine) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return defaultEngineBinary
}

// Resolve checks that the engine binary is reachable via $PATH, surfacing
// an EnvironmentError if not.
func (e RewriteEngine) Resolve() error {
	if _, err := exec.LookPath(e.binary()); err != nil {
		return newErr(EnvironmentError, err, "rewrite engine %q not found on PATH", e.binary())
	}
	return nil
}

// invoke drives the rewrite engine against workerDir with opts, and
// classifies the outcome per §4.6.7: exit 0 is success; exit 1 whose stderr
// is exactly the "nothing to rewrite" line is also success; anything else
// is a RewriteFailure. Stderr is always returned so the caller can
// propagate it to the operator even on success.
func (e RewriteEngine) invoke(ctx context.Context, log *slog.Logger, workerDir string, opts engineOptions) (stderr string, err error) {
	args := []string{
		"--force",
		"--state-branch", opts.stateBranch,
		"--replace-refs", "update-no-add",
		"--backup-namespace", opts.originalsNamespace,
	}
	args = append(args, "--source", workerDir, "--target", workerDir)
	args = append(args, "--refs", opts.rangeSpec)
	args = append(args, "--remap-to-ancestor")

	if opts.tagNameFilter != "" {
		args = append(args, "--tag-name-filter", opts.tagNameFilter)
	}

	args = append(args, engineArgs(opts.directives)...)

	res, runErr := gitexec.Run(ctx, log, nil, workerDir, e.binary(), args...)
	if runErr != nil {
		return res.Stderr, newErr(RewriteFailure, runErr, "rewrite engine did not complete")
	}

	switch {
	case res.ExitCode == 0:
		return res.Stderr, nil
	case res.ExitCode == 1 && strings.TrimSpace(res.Stderr) == nothingToRewriteMarker:
		return res.Stderr, nil
	default:
		return res.Stderr, newErr(RewriteFailure, nil, "rewrite engine exited %d: %s", res.ExitCode, res.Stderr)
	}
}
