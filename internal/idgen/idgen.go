// Package idgen centralizes identifier generation. Runs and nodes use UUIDs;
// events use ULIDs so identifiers also sort by creation time, which keeps
// persisted event logs globally ordered without consulting Seq.
package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRunID returns a UUIDv7 identifier string, falling back to a random
// UUIDv4 if v7 generation fails.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewEventID returns a lexically sortable ULID string.
func NewEventID() string {
	return ulid.Make().String()
}
