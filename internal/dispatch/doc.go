// Package dispatch routes validated packets to command handlers.
//
// Ownership boundary:
// - per-command handler table
// - the printer's canned status reply
// - diagnostic logging of accepted and rejected packets
//
// Framing lives in protocol/stream; this package only sees whole packets.
package dispatch
