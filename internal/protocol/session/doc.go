// Package session owns the host side of one instrument connection.
//
// Ownership boundary:
// - outbound commands and script upload in bounded write chunks
// - single reader goroutine handing framed lines to the consumer
// - version handshake, burst run loop, and port probing
// - transport timeouts, kept apart from decode failures
//
// Decode failures are counted, never returned. Errors returned from this
// package are transport or handler interruptions.
package session
