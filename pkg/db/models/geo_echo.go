package models

import (
	"time"

	"github.com/wandern-app/echo-archiver/pkg/enums"
)

// GeoEcho is a user-created echo row in the mutable relational store. The
// uploader owns the arweave_* columns and the terminal moderation_status
// values; everything else is written by the authoring flow upstream.
type GeoEcho struct {
	EchoID        string         `gorm:"column:echo_id;primaryKey"`
	CreatorUserID string         `gorm:"column:creator_user_id;not null"`
	Content       string         `gorm:"column:content"`
	Title         *string        `gorm:"column:title"`
	ContentType   string         `gorm:"column:content_type"`
	MediaURL      *string        `gorm:"column:media_url"`
	EchoType      enums.EchoType `gorm:"column:echo_type;not null;default:standard"`

	IsPermanent bool `gorm:"column:is_permanent;not null;default:false"`
	IsActive    bool `gorm:"column:is_active;not null;default:true"`

	ModerationStatus enums.ModerationStatus `gorm:"column:moderation_status"`
	ModerationReason *string                `gorm:"column:moderation_reason"`

	ArweaveTxID       *string    `gorm:"column:arweave_tx_id"`
	ArweaveUploadedAt *time.Time `gorm:"column:arweave_uploaded_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (GeoEcho) TableName() string {
	return "geo_echoes"
}

// Uploaded reports whether the echo already reached permanent storage.
func (e GeoEcho) Uploaded() bool {
	return e.ArweaveTxID != nil && *e.ArweaveTxID != ""
}
