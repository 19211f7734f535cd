package bus

import "github.com/google/uuid"

// FlowGenerator mints the flow token of a top-level execute.
type FlowGenerator interface {
	Generate() string
}

// UUIDv7Generator mints UUIDv7 tokens. They sort by creation time, which
// the journal relies on to list recent flows first. The zero value is
// ready to use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random source
// fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
