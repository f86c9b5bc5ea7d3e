// Package refmatch implements §4.1's ref-name matcher (C1): whitelist and
// blacklist entries that are either exact names or `rx:`-prefixed
// POSIX-ERE regular expressions, with blacklist taking strict precedence.
package refmatch
