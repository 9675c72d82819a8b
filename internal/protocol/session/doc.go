// Package session owns consumer session reliability helpers.
//
// Ownership boundary:
// - channel open retry/backoff
// - control-bus poll and heartbeat cadence
package session
