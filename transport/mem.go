package transport

import (
	"bytes"
	"sync"
)

// MemPipe is one end of an in-memory bidirectional byte link. Bytes written
// to one end become readable on the other, in order.
//
// Reads are non-blocking per the engine's Transport contract. A MemPipe end
// is safe for one reader and one writer goroutine.
type MemPipe struct {
	mu   sync.Mutex
	rx   bytes.Buffer
	peer *MemPipe
}

// NewMemPair creates a connected pair of pipe ends.
func NewMemPair() (*MemPipe, *MemPipe) {
	a := &MemPipe{}
	b := &MemPipe{}
	a.peer = b
	b.peer = a

	return a, b
}

// Read drains up to len(p) pending bytes. It returns (0, nil) when nothing is
// pending.
func (m *MemPipe) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rx.Len() == 0 {
		return 0, nil
	}

	return m.rx.Read(p)
}

// Write delivers p to the peer end in one piece.
func (m *MemPipe) Write(p []byte) (int, error) {
	m.peer.mu.Lock()
	defer m.peer.mu.Unlock()

	return m.peer.rx.Write(p)
}

// Pending returns the number of bytes readable on this end.
func (m *MemPipe) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rx.Len()
}
