package echoes

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wandern-app/echo-archiver/pkg/db/models"
	"github.com/wandern-app/echo-archiver/pkg/enums"
)

// DefaultBatchLimit bounds how many candidates one run will pull.
const DefaultBatchLimit = 50

// Repository is the gateway to the mutable echo store. It owns the candidate
// predicate and the two terminal-state transitions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SelectCandidates returns echoes awaiting permanent storage, oldest first.
// The arweave_tx_id IS NULL predicate is what keeps already-archived echoes
// out of every future run.
func (r *Repository) SelectCandidates(ctx context.Context, priorityOnly bool, limit int) ([]models.GeoEcho, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	query := r.db.WithContext(ctx).
		Where("is_permanent = ?", true).
		Where("arweave_tx_id IS NULL").
		Where("is_active = ?", true)

	if priorityOnly {
		query = query.Where("echo_type = ?", enums.EchoTypeAdmin)
	}

	var rows []models.GeoEcho
	err := query.
		Order("created_at ASC").
		Order("echo_id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkFlagged records a rejected echo and withdraws it from candidacy in one
// statement, so a crash cannot leave it flagged but still eligible.
func (r *Repository) MarkFlagged(ctx context.Context, echoID, reason string) error {
	if echoID == "" {
		return errors.New("echo ID required")
	}
	return r.db.WithContext(ctx).
		Model(&models.GeoEcho{}).
		Where("echo_id = ?", echoID).
		Updates(map[string]any{
			"moderation_status": enums.ModerationFlagged,
			"moderation_reason": reason,
			"is_permanent":      false,
		}).Error
}

// MarkUploaded records the permanent-storage identifier and the approved
// status in one statement. Approved is only ever written together with a tx
// ID.
func (r *Repository) MarkUploaded(ctx context.Context, echoID, txID string) error {
	if echoID == "" {
		return errors.New("echo ID required")
	}
	if txID == "" {
		return errors.New("transaction ID required")
	}
	return r.db.WithContext(ctx).
		Model(&models.GeoEcho{}).
		Where("echo_id = ?", echoID).
		Updates(map[string]any{
			"arweave_tx_id":       txID,
			"arweave_uploaded_at": time.Now().UTC(),
			"moderation_status":   enums.ModerationApproved,
		}).Error
}
