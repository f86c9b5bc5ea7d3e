package config

import (
	"fmt"

	"github.com/utilitywarehouse/git-filter-mirror/pkg/auth"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/giturl"
)

// TagPolicy is the §3 tag policy enum.
type TagPolicy string

const (
	// TagPolicyVisited maps only tags the rewrite engine already
	// produced under converted-tags/ while rewriting a branch.
	TagPolicyVisited TagPolicy = "visited"
	// TagPolicyAll additionally walks unvisited tags back to the
	// nearest mapped ancestor (C7).
	TagPolicyAll TagPolicy = "all"
	// TagPolicyNone skips tags entirely; pruning and tag whitelist/
	// blacklist are then forbidden (§4.9 policy coupling).
	TagPolicyNone TagPolicy = "none"
)

const (
	// DefaultWorkdir is §6's `--workdir` default.
	DefaultWorkdir = "./temp"
	// DefaultTagsMaxHistoryLookup is C7's default ancestor-walk budget.
	DefaultTagsMaxHistoryLookup = 50
	// DefaultTagPolicy is §6's `--tags-plan` default.
	DefaultTagPolicy = TagPolicyVisited
)

// RunConfig is the §3 "Run configuration": everything one invocation of the
// pipeline needs, immutable for the duration of the run.
type RunConfig struct {
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
	FilterSpec  []string `yaml:"filterSpec"`

	Workdir string `yaml:"workdir"`

	BranchWhitelist []string `yaml:"branchWhitelist"`
	BranchBlacklist []string `yaml:"branchBlacklist"`
	TagWhitelist    []string `yaml:"tagWhitelist"`
	TagBlacklist    []string `yaml:"tagBlacklist"`

	TagsPlan             TagPolicy `yaml:"tagsPlan"`
	TagsMaxHistoryLookup int       `yaml:"tagsMaxHistoryLookup"`

	PruneBranches bool `yaml:"pruneBranches"`
	PruneTags     bool `yaml:"pruneTags"`

	NoHardlinks bool `yaml:"noHardlinks"`
	NoAtomic    bool `yaml:"noAtomic"`
	NoLock      bool `yaml:"noLock"`

	SourceAuth      auth.Auth `yaml:"sourceAuth"`
	DestinationAuth auth.Auth `yaml:"destinationAuth"`
}

// ApplyDefaults fills in zero-valued fields with the §6 defaults.
func (c *RunConfig) ApplyDefaults() {
	if c.Workdir == "" {
		c.Workdir = DefaultWorkdir
	}
	if c.TagsPlan == "" {
		c.TagsPlan = DefaultTagPolicy
	}
	if c.TagsMaxHistoryLookup == 0 {
		c.TagsMaxHistoryLookup = DefaultTagsMaxHistoryLookup
	}
}

// ApplyDefaultsFrom copies Workdir, TagsPlan, TagsMaxHistoryLookup,
// SourceAuth and DestinationAuth from defaults where c left them zero-valued,
// for use when c came from a YAML batch entry underneath a `defaults:`
// block. The other fields of defaults (filter spec, white/blacklists, the
// boolean flags) are not copied.
func (c *RunConfig) ApplyDefaultsFrom(defaults RunConfig) {
	if c.Workdir == "" {
		c.Workdir = defaults.Workdir
	}
	if c.TagsPlan == "" {
		c.TagsPlan = defaults.TagsPlan
	}
	if c.TagsMaxHistoryLookup == 0 {
		c.TagsMaxHistoryLookup = defaults.TagsMaxHistoryLookup
	}
	if (c.SourceAuth == auth.Auth{}) {
		c.SourceAuth = defaults.SourceAuth
	}
	if (c.DestinationAuth == auth.Auth{}) {
		c.DestinationAuth = defaults.DestinationAuth
	}
	c.ApplyDefaults()
}

// ValidateUsage checks the parts of the config a bad command line produces:
// missing positional arguments and an unrecognised tags-plan/lookup value.
// Callers surface a failure here as a UsageError.
func (c *RunConfig) ValidateUsage() error {
	var errs []error

	if c.Source == "" {
		errs = append(errs, fmt.Errorf("source repository is required"))
	}
	if c.Destination == "" {
		errs = append(errs, fmt.Errorf("destination repository is required"))
	}
	if c.Workdir == "" {
		errs = append(errs, fmt.Errorf("workdir must not be empty"))
	}

	switch c.TagsPlan {
	case TagPolicyVisited, TagPolicyAll, TagPolicyNone:
	default:
		errs = append(errs, fmt.Errorf("tags-plan must be one of visited, all, none, got %q", c.TagsPlan))
	}

	if c.TagsMaxHistoryLookup < 1 {
		errs = append(errs, fmt.Errorf("tags-max-history-lookup must be >= 1, got %d", c.TagsMaxHistoryLookup))
	}

	if c.Source != "" && c.Destination != "" {
		if same, err := giturl.SameRemote(c.Source, c.Destination); err != nil {
			errs = append(errs, fmt.Errorf("invalid repository url: %w", err))
		} else if same {
			errs = append(errs, fmt.Errorf("source and destination must not be the same repository"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}
	return nil
}

// ValidatePolicy checks the §4.9 policy-coupling rule: tag policy none is
// incompatible with a tag whitelist/blacklist or either prune flag. Callers
// surface a failure here as a ConfigConflict.
func (c *RunConfig) ValidatePolicy() error {
	if c.TagsPlan != TagPolicyNone {
		return nil
	}

	var errs []error
	if len(c.TagWhitelist) > 0 || len(c.TagBlacklist) > 0 {
		errs = append(errs, fmt.Errorf("tag whitelist/blacklist is forbidden when tags-plan is none"))
	}
	if c.PruneTags {
		errs = append(errs, fmt.Errorf("prune-tags is forbidden when tags-plan is none"))
	}
	if c.PruneBranches {
		errs = append(errs, fmt.Errorf("prune-branches is forbidden when tags-plan is none"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}
	return nil
}
