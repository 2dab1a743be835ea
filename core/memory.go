package core

import "context"

// Memory is the append-only message store a task delegates its conversation
// state to. The engine requires only these three operations; durability,
// trimming and sharing policies live entirely in implementations.
//
// Implementations must preserve insertion order and must never return a Read
// window that separates a function call message from its paired response.
type Memory interface {
	// Read returns the ordered messages currently visible to the task.
	Read(ctx context.Context) ([]Message, error)

	// Store appends a message.
	Store(ctx context.Context, msg Message) error

	// Appended returns the messages stored since the previous Appended call
	// (or since creation) and advances the checkpoint past them.
	Appended(ctx context.Context) ([]Message, error)
}
