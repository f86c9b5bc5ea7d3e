package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// listFlag accumulates repeatable `--foo 'a b c'` flags into a single
// []string, splitting each occurrence's value on whitespace and appending -
// matching §6's "space-list ... (repeatable)" flags.
type listFlag struct {
	values *[]string
}

func (f listFlag) String() string {
	if f.values == nil {
		return ""
	}
	return strings.Join(*f.values, " ")
}

func (f listFlag) Set(s string) error {
	*f.values = append(*f.values, strings.Fields(s)...)
	return nil
}

// ParseArgs parses the §6 CLI surface: flags plus the three positional
// arguments `<source> <filter-spec> <destination>`. Flags are parsed with
// the stdlib flag package (envString fallback for -workdir, flag.Usage
// override); repeatable whitelist/blacklist flags use flag.Func-style
// accumulation.
func ParseArgs(progName string, args []string) (*RunConfig, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)

	var cfg RunConfig

	fs.StringVar(&cfg.Workdir, "workdir", envString("GIT_FILTER_MIRROR_WORKDIR", DefaultWorkdir), "Working-area root")
	fs.Var(listFlag{&cfg.BranchWhitelist}, "branch-whitelist", "Append to branch whitelist (repeatable)")
	fs.Var(listFlag{&cfg.BranchBlacklist}, "branch-blacklist", "Append to branch blacklist (repeatable)")
	fs.Var(listFlag{&cfg.TagWhitelist}, "tag-whitelist", "Append to tag whitelist (repeatable)")
	fs.Var(listFlag{&cfg.TagBlacklist}, "tag-blacklist", "Append to tag blacklist (repeatable)")

	tagsPlan := fs.String("tags-plan", string(DefaultTagPolicy), "Tag policy: visited|all|none")
	fs.IntVar(&cfg.TagsMaxHistoryLookup, "tags-max-history-lookup", DefaultTagsMaxHistoryLookup, "C7 ancestor budget")
	fs.BoolVar(&cfg.PruneBranches, "prune-branches", false, "Enable destination branch prune")
	fs.BoolVar(&cfg.PruneTags, "prune-tags", false, "Enable destination tag prune")
	fs.BoolVar(&cfg.NoHardlinks, "no-hardlinks", false, "Disallow hardlink optimization in clones")
	fs.BoolVar(&cfg.NoAtomic, "no-atomic", false, "Non-atomic destination push")
	fs.BoolVar(&cfg.NoLock, "no-lock", false, "Disable the exclusive-run guard")

	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.TagsPlan = TagPolicy(*tagsPlan)

	rest := fs.Args()
	if len(rest) != 3 {
		return nil, fmt.Errorf("expected 3 positional arguments <source> <filter-spec> <destination>, got %d", len(rest))
	}
	cfg.Source = rest[0]
	cfg.Destination = rest[2]

	filterTokens, err := SplitFilterSpec(rest[1])
	if err != nil {
		return nil, fmt.Errorf("parsing filter spec: %w", err)
	}
	cfg.FilterSpec = filterTokens

	return &cfg, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "NAME:\n")
	fmt.Fprintf(os.Stderr, "\tgit-filter-mirror - incrementally rewrite and mirror a git repository's history\n")
	fmt.Fprintf(os.Stderr, "\nUSAGE:\n")
	fmt.Fprintf(os.Stderr, "\tgit-filter-mirror [options] <source> <filter-spec> <destination>\n")
	fmt.Fprintf(os.Stderr, "\nOPTIONS:\n")
	fs.PrintDefaults()
}
