// Package consumer reads camera frames out of a shared-memory channel.
//
// Ownership boundary:
// - geometry negotiation from the channel property record
// - image-available notification decoding
// - layout-specific payload decoding and drain-to-latest consumption
//
// Everything here runs on the caller's goroutine; nothing blocks or spawns.
package consumer
