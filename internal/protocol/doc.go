// Package protocol owns the MethodSCRIPT response wire contract and its
// decoding primitives.
//
// Ownership boundary:
// - package classification by leading marker
// - encoded value (hex + SI prefix) decode/encode
// - data field and metadata parsing
// - burst state tracking and success/failure tallies
//
// Decoding is pure: nothing in this package performs I/O. Line framing lives
// in protocol/frame, device I/O in protocol/session.
package protocol
