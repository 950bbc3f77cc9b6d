// Package feed provides the upstream real-time session the ingestor pulls
// execution messages from.
package feed

// Session is one live upstream connection. Next never blocks: it returns the
// next raw message, or ok=false when nothing is queued. Close is idempotent.
type Session interface {
	Next() (raw []byte, ok bool)
	Close() error
}
