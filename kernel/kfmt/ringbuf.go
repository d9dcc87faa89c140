// Package kfmt provides output sinks for kernel subsystems that need to keep
// a bounded history of their diagnostic output.
package kfmt

import (
	"io"
	"sync"
)

// DefaultRingBufferSize is the capacity used by NewRingBuffer when the
// requested size is zero.
const DefaultRingBufferSize = 4096

// RingBuffer is an io.ReadWriter that retains the most recently written bytes.
// Once full, each write discards the oldest unread byte. The buffer size is
// always a power of 2 and at most size-1 unread bytes are retained.
type RingBuffer struct {
	mu             sync.Mutex
	buffer         []byte
	mask           int
	rIndex, wIndex int
}

// NewRingBuffer returns a RingBuffer whose capacity is size rounded up to the
// next power of 2.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingBufferSize
	}

	capacity := 1
	for capacity < size {
		capacity <<= 1
	}

	return &RingBuffer{
		buffer: make([]byte, capacity),
		mask:   capacity - 1,
	}
}

// Write writes len(p) bytes from p to the RingBuffer.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & rb.mask
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & rb.mask
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns the number of bytes read (0
// <= n <= len(p)) and any error encountered.
func (rb *RingBuffer) Read(p []byte) (n int, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	switch {
	case rb.rIndex < rb.wIndex:
		// read up to min(wIndex - rIndex, len(p)) bytes
		n = copy(p, rb.buffer[rb.rIndex:rb.wIndex])
		rb.rIndex += n

		return n, nil
	case rb.rIndex > rb.wIndex:
		// Read up to min(len(buf) - rIndex, len(p)) bytes
		n = copy(p, rb.buffer[rb.rIndex:])
		rb.rIndex = (rb.rIndex + n) & rb.mask

		return n, nil
	default: // rIndex == wIndex
		return 0, io.EOF
	}
}

// Len returns the number of unread bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return (rb.wIndex - rb.rIndex) & rb.mask
}

// Reset discards all unread bytes.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	rb.rIndex, rb.wIndex = 0, 0
	rb.mu.Unlock()
}
