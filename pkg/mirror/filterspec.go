package mirror

import (
	"fmt"
	"strings"
)

// Directive is one parsed, validated entry of the rewrite-filter spec
// (§4.5). Kind is the directive's flag name without its leading dashes
// ("setup", "<phase>-filter", "prune-empty"); Arg is empty for prune-empty.
type Directive struct {
	Kind string
	Arg  string
}

// tagNameFilterFlag is rejected unconditionally: the core, not the filter
// spec, controls tag naming (C7/§4.6.6's tag-name-filter).
const tagNameFilterFlag = "--tag-name-filter"

// ValidateFilterSpec checks the ordered list of raw tokens against §4.5's
// accepted shapes and returns the parsed directives. It runs before C2, so
// a malformed spec never causes a wasted mirror refresh.
func ValidateFilterSpec(tokens []string) ([]Directive, error) {
	if len(tokens) == 0 {
		return nil, newErr(InvalidFilter, nil, "filter spec must not be empty")
	}

	var directives []Directive

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if !strings.HasPrefix(tok, "--") {
			return nil, newErr(InvalidFilter, nil, "unrecognised filter spec token %q", tok)
		}

		if tok == tagNameFilterFlag {
			return nil, newErr(InvalidFilter, nil, "%s is not permitted: tag naming is controlled by the core", tagNameFilterFlag)
		}

		switch {
		case tok == "--prune-empty":
			directives = append(directives, Directive{Kind: "prune-empty"})
			continue

		case tok == "--setup":
			arg, ok := takeArg(tokens, &i)
			if !ok {
				return nil, newErr(InvalidFilter, nil, "%s requires an argument", tok)
			}
			directives = append(directives, Directive{Kind: "setup", Arg: arg})
			continue

		case strings.HasSuffix(tok, "-filter"):
			phase, ok := strings.CutSuffix(strings.TrimPrefix(tok, "--"), "-filter")
			if !ok || phase == "" {
				return nil, newErr(InvalidFilter, nil, "unrecognised filter spec token %q", tok)
			}
			arg, ok := takeArg(tokens, &i)
			if !ok {
				return nil, newErr(InvalidFilter, nil, "%s requires an argument", tok)
			}
			directives = append(directives, Directive{Kind: phase + "-filter", Arg: arg})
			continue

		default:
			return nil, newErr(InvalidFilter, nil, "unrecognised filter spec token %q", tok)
		}
	}

	return directives, nil
}

func takeArg(tokens []string, i *int) (string, bool) {
	if *i+1 >= len(tokens) {
		return "", false
	}
	*i++
	return tokens[*i], true
}

// engineArgs returns the argv fragment the rewrite engine should receive for
// these directives, in the same order they were given.
func engineArgs(directives []Directive) []string {
	var args []string
	for _, d := range directives {
		switch d.Kind {
		case "prune-empty":
			args = append(args, "--prune-empty")
		case "setup":
			args = append(args, "--setup", d.Arg)
		default:
			args = append(args, fmt.Sprintf("--%s", d.Kind), d.Arg)
		}
	}
	return args
}
