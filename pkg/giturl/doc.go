// Package giturl parses and normalises the handful of remote URL shapes git
// itself accepts: scp-like shorthand, ssh://, https:// and file:// URLs.
//
// net/url cannot parse the scp-like shorthand (user@host:path/to/repo.git),
// which is why this is hand-rolled with regexp rather than built on top of
// the standard library URL parser.
package giturl
