// Package uuid generates batch identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

var _ crunchbase.IDGenerator = Generator{}

// Generator creates time-ordered UUID v7 strings, so archived batches sort by creation.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
