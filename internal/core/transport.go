package core

// Frame is an encoded signaling event ready for the wire.
type Frame []byte

// SignalConn abstracts a peer's bidirectional signaling channel.
// Owned by the adapter; the adapter must Kill() it.
type SignalConn interface {
	// TrySend queues a frame without blocking. Returns ErrBackpressure
	// when the peer's send buffer is full; the frame is dropped.
	TrySend(Frame) error
	// Alive reports whether the underlying transport is still connected.
	Alive() bool
	// Kill tears the transport down. Idempotent.
	Kill()
}
