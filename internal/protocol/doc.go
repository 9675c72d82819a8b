// Package protocol owns the control-bus wire contract and parsing primitives.
//
// Ownership boundary:
// - message header primitives
// - tlv payload primitives
// - semantic validation entry points
// - the image-available message schema
//
// Frame-arrival notifications travel as protocol messages; pixel payloads never
// do. Slot framing for the shared-memory segment lives in protocol/frame.
package protocol
