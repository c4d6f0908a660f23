// Package state persists sqgen's small amount of durable state in SQLite:
// per-project settings such as the version suppression marker, and the
// generation history shown by `sqgen status`.
package state

import (
	"context"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// SuppressionKey is the settings key holding the running version for which
// the outdated plugin warning was dismissed.
const SuppressionKey = "outdate.runtime.suppressed.version"

// Store is the persistence interface used by the engine and CLI.
type Store interface {
	GetSetting(ctx context.Context, project, key string) (string, bool, error)
	SetSetting(ctx context.Context, project, key, value string) error

	Suppressed(ctx context.Context, project string) (string, bool, error)
	SetSuppressed(ctx context.Context, project, version string) error

	RecordGeneration(ctx context.Context, g core.Generation) error
	LatestGenerations(ctx context.Context) ([]core.Generation, error)
	RunGenerations(ctx context.Context, runID string) ([]core.Generation, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
