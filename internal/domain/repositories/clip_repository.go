package repositories

import (
	"context"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// ClipRepository is the persistence contract for the clip store. The clip
// row's status column is the only concurrency control in the pipeline:
// UpdateStatusGuarded performs a conditional update keyed on the expected
// current status and reports whether the transition actually happened, so a
// stale or duplicate job observes false and exits as a no-op.
type ClipRepository interface {
	Create(ctx context.Context, clip *entities.Clip) error
	GetByFilename(ctx context.Context, filename string) (*entities.Clip, error)

	// UpdateStatusGuarded moves a clip from one of the expected statuses to the
	// target status, optionally setting extra columns. Returns true when the
	// guarded update matched a row.
	UpdateStatusGuarded(ctx context.Context, filename string, expected []entities.ClipStatus, target entities.ClipStatus, fields map[string]interface{}) (bool, error)

	MarkError(ctx context.Context, filename string, message string) error
	MarkSkipped(ctx context.Context, filename string, reason string) error

	ListBySession(ctx context.Context, sessionID string) ([]entities.Clip, error)
	ListBySessionAndStatus(ctx context.Context, sessionID string, statuses []entities.ClipStatus) ([]entities.Clip, error)
	CountBySessionGrouped(ctx context.Context, sessionID string) (map[entities.ClipStatus]int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
