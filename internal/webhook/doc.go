// Package webhook receives GitHub push webhooks and triggers an immediate,
// out-of-band fleet-mode run for the repository that changed, instead of
// waiting for the next polling interval.
package webhook
