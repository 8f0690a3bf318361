package audio

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

// OutputBuffer carries rendered PCM bytes from the engine to an audio backend.
//
// Writes block while the ring is full, so a real-time consumer paces the
// engine. Reads block while the ring is empty and then return what is
// buffered, up to len(p). After Close, writes fail and reads drain what is
// left before returning io.EOF.
type OutputBuffer struct {
	ring   *ringbuffer.RingBuffer
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

// NewOutputBuffer creates a buffer holding size bytes.
func NewOutputBuffer(size int) *OutputBuffer {
	b := &OutputBuffer{
		ring: ringbuffer.New(size),
	}
	b.cond = sync.NewCond(&b.mu)

	logrus.WithFields(logrus.Fields{
		"function": "NewOutputBuffer",
		"size":     size,
	}).Debug("Output buffer created")

	return b
}

// Write stores all of p, waiting for space as needed.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for written < len(p) {
		for b.ring.Free() == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			return written, ErrOutputClosed
		}

		n, err := b.ring.Write(p[written:])
		written += n
		if n > 0 {
			b.cond.Broadcast()
		}
		if err != nil && err != ringbuffer.ErrTooMuchDataToWrite && err != ringbuffer.ErrIsFull {
			return written, err
		}
	}
	return written, nil
}

// Read waits until at least one byte is buffered or the buffer closes, then
// copies up to len(p) bytes into p.
func (b *OutputBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.ring.Length() == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.ring.Length() == 0 && b.closed {
		return 0, io.EOF
	}

	n := min(len(p), b.ring.Length())
	if n > 0 {
		_, _ = b.ring.Read(p[:n])
		b.cond.Broadcast()
	}
	return n, nil
}

// Buffered returns the number of bytes waiting to be read.
func (b *OutputBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Length()
}

// Close wakes all waiters; pending data stays readable.
func (b *OutputBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
	return nil
}
