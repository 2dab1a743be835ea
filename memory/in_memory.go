package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/braidworks/braid/core"
)

// ErrClosed is returned by stores whose backing resource has been released.
var ErrClosed = errors.New("memory: store closed")

// InMemory is a volatile core.Memory implementation storing messages in a
// process local slice. It is safe for concurrent access and best suited for
// tests, examples and single-process runs. Reads return a copy to prevent
// external mutation of internal state.
type InMemory struct {
	mu         sync.RWMutex
	messages   []core.Message
	checkpoint int
}

// NewInMemory constructs an empty in-memory message store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Read returns the ordered messages currently stored.
func (m *InMemory) Read(_ context.Context) ([]core.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

// Store appends a message.
func (m *InMemory) Store(_ context.Context, msg core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Appended returns the messages stored since the previous Appended call and
// advances the checkpoint past them.
func (m *InMemory) Appended(_ context.Context) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Message, len(m.messages)-m.checkpoint)
	copy(out, m.messages[m.checkpoint:])
	m.checkpoint = len(m.messages)
	return out, nil
}

// Len reports the number of stored messages.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}
