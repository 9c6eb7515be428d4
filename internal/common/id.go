package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique ingest run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewID generates a bare UUID string
func NewID() string {
	return uuid.New().String()
}
