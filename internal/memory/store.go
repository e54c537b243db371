// Package memory persists what the agent has seen and done. It is the durable
// dedup backstop across restarts.
package memory

import (
	"context"
	"time"
)

type Kind string

const (
	KindStatus       Kind = "status"
	KindNotification Kind = "notification"
	KindPost         Kind = "post"
)

// Record is one episodic memory.
type Record struct {
	ID                string
	Kind              Kind
	Feed              string
	Author            string
	Content           string
	ImageDescriptions []string
	Response          string
	Actions           []string
	CreatedAt         time.Time
}

type Store interface {
	CreateMemory(ctx context.Context, record Record) error
	// GetMemoryByID returns nil, nil when no record exists.
	GetMemoryByID(ctx context.Context, id string) (*Record, error)
	// RecentMemories returns up to limit records of kind, newest first.
	RecentMemories(ctx context.Context, kind Kind, limit int) ([]Record, error)
	Close() error
}
