package mirror

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-engine")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRewriteEngineInvoke_Success(t *testing.T) {
	e := RewriteEngine{Binary: fakeEngine(t, "exit 0\n")}
	stderr, err := e.invoke(context.Background(), discardLogger(), t.TempDir(), engineOptions{
		stateBranch: stateRef, rangeSpec: "refs/heads/main",
	})
	if err != nil {
		t.Fatalf("invoke() error = %v", err)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty", stderr)
	}
}

func TestRewriteEngineInvoke_NothingToRewriteIsSuccess(t *testing.T) {
	e := RewriteEngine{Binary: fakeEngine(t, "echo 'Nothing new to rewrite' 1>&2\nexit 1\n")}
	_, err := e.invoke(context.Background(), discardLogger(), t.TempDir(), engineOptions{
		stateBranch: stateRef, rangeSpec: "refs/heads/main",
	})
	if err != nil {
		t.Fatalf("invoke() error = %v, want nil (nothing-to-rewrite is non-fatal)", err)
	}
}

func TestRewriteEngineInvoke_OtherFailure(t *testing.T) {
	e := RewriteEngine{Binary: fakeEngine(t, "echo 'boom' 1>&2\nexit 1\n")}
	_, err := e.invoke(context.Background(), discardLogger(), t.TempDir(), engineOptions{
		stateBranch: stateRef, rangeSpec: "refs/heads/main",
	})
	if err == nil {
		t.Fatal("invoke() error = nil, want RewriteFailure")
	}
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if merr.Kind != RewriteFailure {
		t.Errorf("Kind = %v, want RewriteFailure", merr.Kind)
	}
}

func TestRewriteEngineResolve(t *testing.T) {
	e := RewriteEngine{Binary: fakeEngine(t, "exit 0\n")}
	if err := e.Resolve(); err != nil {
		t.Errorf("Resolve() error = %v, want nil", err)
	}

	missing := RewriteEngine{Binary: filepath.Join(t.TempDir(), "does-not-exist")}
	if err := missing.Resolve(); err == nil {
		t.Error("Resolve() error = nil, want EnvironmentError for missing binary")
	}
}
