package config

import "testing"

func TestRunConfig_ValidateUsage(t *testing.T) {
	c := RunConfig{Source: "a", Destination: "b", Workdir: "./temp", TagsPlan: TagPolicyVisited, TagsMaxHistoryLookup: 50}
	if err := c.ValidateUsage(); err != nil {
		t.Errorf("ValidateUsage() error = %v, want nil", err)
	}

	bad := RunConfig{TagsPlan: TagPolicyVisited, TagsMaxHistoryLookup: 50}
	if err := bad.ValidateUsage(); err == nil {
		t.Error("ValidateUsage() with missing source/destination/workdir = nil, want error")
	}
}

func TestRunConfig_ValidatePolicy(t *testing.T) {
	ok := RunConfig{TagsPlan: TagPolicyAll, PruneTags: true}
	if err := ok.ValidatePolicy(); err != nil {
		t.Errorf("ValidatePolicy() error = %v, want nil", err)
	}

	conflict := RunConfig{TagsPlan: TagPolicyNone, PruneTags: true}
	if err := conflict.ValidatePolicy(); err == nil {
		t.Error("ValidatePolicy() with tags-plan none + prune-tags = nil, want error")
	}

	conflict2 := RunConfig{TagsPlan: TagPolicyNone, TagWhitelist: []string{"v1"}}
	if err := conflict2.ValidatePolicy(); err == nil {
		t.Error("ValidatePolicy() with tags-plan none + tag whitelist = nil, want error")
	}
}

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs("git-filter-mirror", []string{
		"--branch-whitelist", "main dev",
		"--tags-plan", "all",
		"--prune-tags",
		"git@github.com:example/source.git",
		"--prune-empty --setup 'echo hi'",
		"git@github.com:example/dest.git",
	})
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}

	if cfg.Source != "git@github.com:example/source.git" {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.Destination != "git@github.com:example/dest.git" {
		t.Errorf("Destination = %q", cfg.Destination)
	}
	if cfg.TagsPlan != TagPolicyAll {
		t.Errorf("TagsPlan = %q", cfg.TagsPlan)
	}
	if !cfg.PruneTags {
		t.Error("PruneTags = false, want true")
	}
	wantBranches := []string{"main", "dev"}
	if len(cfg.BranchWhitelist) != 2 || cfg.BranchWhitelist[0] != wantBranches[0] || cfg.BranchWhitelist[1] != wantBranches[1] {
		t.Errorf("BranchWhitelist = %v, want %v", cfg.BranchWhitelist, wantBranches)
	}
	wantFilter := []string{"--prune-empty", "--setup", "echo hi"}
	if len(cfg.FilterSpec) != len(wantFilter) {
		t.Fatalf("FilterSpec = %v, want %v", cfg.FilterSpec, wantFilter)
	}
	for i := range wantFilter {
		if cfg.FilterSpec[i] != wantFilter[i] {
			t.Errorf("FilterSpec[%d] = %q, want %q", i, cfg.FilterSpec[i], wantFilter[i])
		}
	}
}

func TestParseArgs_wrongArgCount(t *testing.T) {
	_, err := ParseArgs("git-filter-mirror", []string{"only-one-arg"})
	if err == nil {
		t.Error("ParseArgs() with 1 positional arg = nil error, want error")
	}
}
