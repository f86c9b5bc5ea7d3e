package refmatch

import (
	"fmt"
	"regexp"
	"strings"
)

const regexPrefix = "rx:"

// pattern is one compiled whitelist/blacklist entry. rx is nil for a literal
// (exact-match) entry.
type pattern struct {
	raw string
	rx  *regexp.Regexp
}

func compile(entry string) (*pattern, bool, error) {
	trimmed := strings.TrimSpace(entry)
	if trimmed == "" {
		// empty/whitespace-only entries are ignored entirely
		return nil, false, nil
	}

	if rest, ok := strings.CutPrefix(trimmed, regexPrefix); ok {
		rx, err := regexp.CompilePOSIX("^(" + rest + ")$")
		if err != nil {
			return nil, false, fmt.Errorf("invalid regex pattern %q: %w", entry, err)
		}
		return &pattern{raw: entry, rx: rx}, true, nil
	}

	return &pattern{raw: trimmed}, true, nil
}

func (p *pattern) matches(name string) bool {
	if p.rx != nil {
		return p.rx.MatchString(name)
	}
	return p.raw == name
}

// List is a compiled, whitespace/empty-entry-filtered whitelist or
// blacklist.
type List []*pattern

// Compile compiles a raw whitelist/blacklist config into a List. Entries
// prefixed with "rx:" are compiled as POSIX-ERE regular expressions,
// anchored at both ends; all others are literal names. Empty or
// whitespace-only entries are dropped.
func Compile(entries []string) (List, error) {
	var list List
	for _, e := range entries {
		p, ok, err := compile(e)
		if err != nil {
			return nil, err
		}
		if ok {
			list = append(list, p)
		}
	}
	return list, nil
}

func (l List) matchesAny(name string) bool {
	for _, p := range l {
		if p.matches(name) {
			return true
		}
	}
	return false
}

// Matcher is a compiled whitelist+blacklist pair for one ref type (branches
// or tags).
type Matcher struct {
	whitelist List
	blacklist List
}

// New compiles the given whitelist/blacklist entries into a Matcher.
func New(whitelist, blacklist []string) (*Matcher, error) {
	wl, err := Compile(whitelist)
	if err != nil {
		return nil, fmt.Errorf("invalid whitelist: %w", err)
	}
	bl, err := Compile(blacklist)
	if err != nil {
		return nil, fmt.Errorf("invalid blacklist: %w", err)
	}
	return &Matcher{whitelist: wl, blacklist: bl}, nil
}

// Passes reports whether name is in-scope: not blacklisted, and either the
// whitelist is empty or name matches some whitelist entry. Blacklist always
// takes strict precedence over whitelist (§4.1, invariant 4 in §8).
func (m *Matcher) Passes(name string) bool {
	if m.blacklist.matchesAny(name) {
		return false
	}
	if len(m.whitelist) == 0 {
		return true
	}
	return m.whitelist.matchesAny(name)
}
