package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://host.xz[:port]/path/to/repo.git
	httpsURLRgx = regexp.MustCompile(`^https://(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	localURLRgx = regexp.MustCompile(`^file:///(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)
)

// URL is a parsed git remote URL.
type URL struct {
	Scheme string // 'scp', 'ssh', 'https' or 'local'
	User   string // empty for https and local urls
	Host   string // host or host:port
	Path   string // path to the repo, no leading/trailing slash
	Repo   string // repo name, includes .git if present
}

// NormaliseURL lowercases, trims whitespace and trailing slashes, so
// equivalent remote spellings hash and compare identically.
func NormaliseURL(rawURL string) string {
	n := strings.ToLower(strings.TrimSpace(rawURL))
	return strings.TrimRight(n, "/")
}

// Parse parses one of the accepted remote URL syntaxes.
func Parse(rawURL string) (*URL, error) {
	u := &URL{}
	rawURL = NormaliseURL(rawURL)

	var sections []string
	switch {
	case IsSCPURL(rawURL):
		sections = scpURLRgx.FindStringSubmatch(rawURL)
		u.Scheme = "scp"
		u.User = sections[scpURLRgx.SubexpIndex("user")]
		u.Host = sections[scpURLRgx.SubexpIndex("host")]
		u.Path = sections[scpURLRgx.SubexpIndex("path")]
		u.Repo = sections[scpURLRgx.SubexpIndex("repo")]
	case IsSSHURL(rawURL):
		sections = sshURLRgx.FindStringSubmatch(rawURL)
		u.Scheme = "ssh"
		u.User = sections[sshURLRgx.SubexpIndex("user")]
		u.Host = sections[sshURLRgx.SubexpIndex("host")]
		u.Path = sections[sshURLRgx.SubexpIndex("path")]
		u.Repo = sections[sshURLRgx.SubexpIndex("repo")]
	case IsHTTPSURL(rawURL):
		sections = httpsURLRgx.FindStringSubmatch(rawURL)
		u.Scheme = "https"
		u.Host = sections[httpsURLRgx.SubexpIndex("host")]
		u.Path = sections[httpsURLRgx.SubexpIndex("path")]
		u.Repo = sections[httpsURLRgx.SubexpIndex("repo")]
	case IsLocalURL(rawURL):
		sections = localURLRgx.FindStringSubmatch(rawURL)
		u.Scheme = "local"
		u.Path = sections[localURLRgx.SubexpIndex("path")]
		u.Repo = sections[localURLRgx.SubexpIndex("repo")]
	default:
		return nil, fmt.Errorf("remote url %q is not a recognised scp, ssh, https or file url", rawURL)
	}

	u.Path = strings.Trim(u.Path, "/")
	if u.Path == "" {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if u.Repo == "" || u.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return u, nil
}

// Equals reports whether two parsed URLs address the same remote repo,
// regardless of scheme (host/path/repo name match, .git suffix ignored).
func (u *URL) Equals(other *URL) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Host == other.Host &&
		u.Path == other.Path &&
		(u.Repo == other.Repo || strings.TrimSuffix(u.Repo, ".git") == strings.TrimSuffix(other.Repo, ".git"))
}

// SameRemote reports whether two raw URL strings address the same remote
// repository. Used by internal/config to reject a source/destination pair
// that is trivially the same repo.
func SameRemote(a, b string) (bool, error) {
	aURL, err := Parse(a)
	if err != nil {
		return false, err
	}
	bURL, err := Parse(b)
	if err != nil {
		return false, err
	}
	return aURL.Equals(bURL), nil
}

// CanonicalKey returns a scheme-independent key identifying the remote
// rawURL addresses: host, path and repo name with any .git suffix
// stripped, joined by NUL so none of the three can collide across a
// boundary. Unlike NormaliseURL (a plain case/whitespace fold), this
// collapses the scp-like, ssh:// and https:// spellings of the very same
// remote onto one key, so internal/workarea's digest doesn't hand out two
// different worker directories for a source entered two different ways in
// a fleet config. rawURL that fails to parse (already rejected elsewhere
// by RunConfig.ValidateUsage) falls back to NormaliseURL so callers that
// digest ahead of validation still get a stable, if coarser, key.
func CanonicalKey(rawURL string) string {
	u, err := Parse(rawURL)
	if err != nil {
		return NormaliseURL(rawURL)
	}
	return u.Host + "\x00" + u.Path + "\x00" + strings.TrimSuffix(u.Repo, ".git")
}

func IsSCPURL(rawURL string) bool   { return scpURLRgx.MatchString(rawURL) }
func IsSSHURL(rawURL string) bool   { return sshURLRgx.MatchString(rawURL) }
func IsHTTPSURL(rawURL string) bool { return httpsURLRgx.MatchString(rawURL) }
func IsLocalURL(rawURL string) bool { return localURLRgx.MatchString(rawURL) }
