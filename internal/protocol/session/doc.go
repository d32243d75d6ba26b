// Package session owns the per-connection parser lifecycle.
//
// Ownership boundary:
// - one stream.Parser per live connection, created fresh on open
// - delivery serialization and event hand-off to a Dispatcher
// - fatal framing policy (close the connection or recreate the parser)
//
// Sessions never resynchronize a corrupted stream. The transport owns
// idle timeouts and the actual teardown of the connection.
package session
