// Package protocol owns the printer wire contract.
//
// Ownership boundary:
// - command catalog (this package)
// - running checksum (checksum)
// - fixed header/footer layout and atomic codec (frame)
// - incremental stream framing (stream)
// - per-connection parser lifecycle (session)
package protocol
