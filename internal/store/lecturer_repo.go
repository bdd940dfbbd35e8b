package store

import (
	"context"
	"errors"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// NameRef points a loose name key at one stored lecturer.
type NameRef struct {
	// ProfileURL is the record identity.
	ProfileURL string
	// Name is the display name as stored.
	Name string
}

// LecturerStore persists lecturer records keyed by normalized profile URL.
type LecturerStore interface {
	// Put inserts the record or replaces the stored one with the same ID.
	Put(ctx context.Context, rec *lecturer.Record) error
	// Get loads one record by normalized profile URL or returns ErrNotFound.
	Get(ctx context.Context, profileURL string) (*lecturer.Record, error)
	// List returns the records matching q, ordered by name.
	List(ctx context.Context, q Query) ([]*lecturer.Record, error)
	// Names maps lecturer.NameKey of every stored record to its identity.
	// Collaborator matching resolves co-author names through it.
	Names(ctx context.Context) (map[string]NameRef, error)
	// Count reports how many records are stored.
	Count(ctx context.Context) (int64, error)
	// Close releases backend resources.
	Close()
}
