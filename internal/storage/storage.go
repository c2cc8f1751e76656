// Package storage defines the persistence contract for game sessions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tatianab/lesson-game/internal/models"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")

// Record is the authoritative copy of one session.
type Record struct {
	ID        string
	Spec      *models.GameSpecification
	State     models.GameState
	Players   map[string]models.PlayerState
	UpdatedAt time.Time
}

// Summary describes a stored session without loading it.
type Summary struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Phase     models.Phase `json:"phase"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
