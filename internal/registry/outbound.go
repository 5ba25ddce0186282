package registry

import "sync"

// DefaultOutboundBuffer is the number of frames an Outbound queues before it
// starts dropping.
const DefaultOutboundBuffer = 256

// Outbound carries encoded frames from the router to one connection's write
// pump. Send never blocks; a full or closed Outbound drops the frame.
type Outbound struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

// NewOutbound creates an Outbound that buffers up to size frames.
func NewOutbound(size int) *Outbound {
	if size <= 0 {
		size = DefaultOutboundBuffer
	}
	return &Outbound{frames: make(chan []byte, size)}
}

// C returns the receive side drained by the write pump. It is closed once the
// Outbound is detached or superseded.
func (o *Outbound) C() <-chan []byte {
	return o.frames
}

// Send queues frame and reports whether it was accepted.
func (o *Outbound) Send(frame []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}

	select {
	case o.frames <- frame:
		return true
	default:
		return false
	}
}

// Close closes the frame channel. Calling Close more than once is safe.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.frames)
}

// Closed reports whether Close has been called.
func (o *Outbound) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
