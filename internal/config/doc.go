// Package config defines the run configuration (§3 "Run configuration"),
// parses it from the CLI surface of §6, and optionally loads a YAML batch
// file for fleet/unattended use, with per-repository entries layered over
// a shared set of defaults.
package config
