package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// ClipRepository handles clip store data operations
type ClipRepository struct {
	db *gorm.DB
}

// NewClipRepository creates a new clip repository
func NewClipRepository(db *gorm.DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// Create inserts a new clip row
func (r *ClipRepository) Create(ctx context.Context, clip *entities.Clip) error {
	if clip == nil {
		return errors.New("clip cannot be nil")
	}
	return r.db.WithContext(ctx).Create(clip).Error
}

// GetByFilename retrieves a clip by its unique filename
func (r *ClipRepository) GetByFilename(ctx context.Context, filename string) (*entities.Clip, error) {
	var clip entities.Clip
	if err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &clip, nil
}

// UpdateStatusGuarded performs the status-guarded conditional update that
// serializes workers without explicit locks. RowsAffected == 0 means another
// worker already advanced the clip past the expected status.
func (r *ClipRepository) UpdateStatusGuarded(ctx context.Context, filename string, expected []entities.ClipStatus, target entities.ClipStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&entities.Clip{}).
		Where("filename = ? AND status IN ?", filename, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkError writes a terminal error with its human-readable message
func (r *ClipRepository) MarkError(ctx context.Context, filename string, message string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Clip{}).
		Where("filename = ?", filename).
		Updates(map[string]interface{}{
			"status":        entities.ClipStatusError,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error
}

// MarkSkipped marks a clip as capture noise; the reason lands in
// error_message for operator visibility even though it is not an error
func (r *ClipRepository) MarkSkipped(ctx context.Context, filename string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Clip{}).
		Where("filename = ?", filename).
		Updates(map[string]interface{}{
			"status":        entities.ClipStatusSkipped,
			"error_message": reason,
			"updated_at":    time.Now(),
		}).Error
}

// ListBySession retrieves all clips of a session ordered by capture time
func (r *ClipRepository) ListBySession(ctx context.Context, sessionID string) ([]entities.Clip, error) {
	var clips []entities.Clip
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("captured_at ASC").
		Find(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

// ListBySessionAndStatus retrieves session clips in the given statuses
func (r *ClipRepository) ListBySessionAndStatus(ctx context.Context, sessionID string, statuses []entities.ClipStatus) ([]entities.Clip, error) {
	var clips []entities.Clip
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND status IN ?", sessionID, statuses).
		Order("captured_at ASC").
		Find(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

// CountBySessionGrouped returns clip counts per status for a session
func (r *ClipRepository) CountBySessionGrouped(ctx context.Context, sessionID string) (map[entities.ClipStatus]int64, error) {
	type row struct {
		Status entities.ClipStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&entities.Clip{}).
		Select("status, count(*) as count").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[entities.ClipStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// DeleteBySession hard-deletes every clip row of a session. Used only by the
// operator reset flow, which also removes the session's queued jobs.
func (r *ClipRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&entities.Clip{})
	return res.RowsAffected, res.Error
}
