// Package transport carries raw printer bytes over TCP in place of the
// wireless write/notify characteristic pair.
//
// Each accepted connection is one session. Every Read is handed to the
// session as one delivery, unaligned with packet boundaries, and replies
// are written back on the same connection.
package transport
