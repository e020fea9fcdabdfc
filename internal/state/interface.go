package state

import (
	"context"
	"io"
)

// CheckpointWriter records step outputs and usage. Writes are advisory:
// callers never rely on them for control flow.
type CheckpointWriter interface {
	CreateCheckpoint(ctx context.Context, cp *Checkpoint) error
}

// CheckpointStore persists and lists checkpoints.
type CheckpointStore interface {
	CheckpointWriter
	ListCheckpoints(ctx context.Context, workflowID string) ([]Checkpoint, error)
}

// RunStore persists summaries of finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, workflowID string, limit int) ([]Run, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore is the full persistence surface backed by SQLite.
type StateStore interface {
	io.Closer
	Migrator
	CheckpointStore
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore       = (*DB)(nil)
	_ CheckpointWriter = (*AsyncCheckpointer)(nil)
)
