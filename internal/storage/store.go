package storage

import (
	"context"
	"errors"

	"spikegrid/internal/model"
)

// Store persists network snapshots and the reward history of scenario runs.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.NetworkSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.NetworkSnapshot, bool, error)
	// ListSnapshots returns summaries, newest first.
	ListSnapshots(ctx context.Context) ([]model.SnapshotSummary, error)
	DeleteSnapshot(ctx context.Context, id string) (bool, error)
	SaveRewardHistory(ctx context.Context, runID string, history []int) error
	GetRewardHistory(ctx context.Context, runID string) ([]int, bool, error)
}

var ErrNotInitialized = errors.New("store is not initialized")
