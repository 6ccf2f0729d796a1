package pipeline

import (
	"time"

	"github.com/wandern-app/echo-archiver/pkg/arweave"
	"github.com/wandern-app/echo-archiver/pkg/db/models"
	"github.com/wandern-app/echo-archiver/pkg/moderation"
	"github.com/wandern-app/echo-archiver/pkg/security"
)

const (
	documentType    = "geo-echo"
	documentVersion = "1.0"

	// moderationApprovedMarker is written into every archived document so the
	// permanent record itself attests that it passed the final check.
	moderationApprovedMarker = "approved"

	defaultContentType = "text"
)

// UploadDocument is the normalized envelope written to permanent storage. It
// is deliberately independent of the geo_echoes schema: the mutable store can
// evolve without changing what past uploads look like.
type UploadDocument struct {
	Type        string  `json:"type"`
	App         string  `json:"app"`
	Version     string  `json:"version"`
	Title       *string `json:"title"`
	Content     string  `json:"content"`
	ContentType string  `json:"content_type"`
	CreatedAt   *string `json:"created_at"`
	UserIDHash  string  `json:"user_id_hash"`
	Moderation  string  `json:"moderation"`
}

func buildDocument(echo models.GeoEcho, appID string) UploadDocument {
	var createdAt *string
	if !echo.CreatedAt.IsZero() {
		formatted := echo.CreatedAt.UTC().Format(time.RFC3339)
		createdAt = &formatted
	}

	return UploadDocument{
		Type:        documentType,
		App:         appID,
		Version:     documentVersion,
		Title:       echo.Title,
		Content:     echo.Content,
		ContentType: echo.ContentType,
		CreatedAt:   createdAt,
		UserIDHash:  security.HashUserID(echo.CreatorUserID),
		Moderation:  moderationApprovedMarker,
	}
}

func buildTags(appName string) []arweave.Tag {
	return []arweave.Tag{
		{Name: "App-Name", Value: appName},
		{Name: "Content-Type", Value: "application/json"},
		{Name: "Type", Value: documentType},
		{Name: "Moderation-Status", Value: moderationApprovedMarker},
	}
}

// buildCheckRequest maps an echo onto the moderation wire contract. Content
// falls back to the title only when the content itself is empty.
func buildCheckRequest(echo models.GeoEcho) moderation.CheckRequest {
	content := echo.Content
	if content == "" && echo.Title != nil {
		content = *echo.Title
	}

	contentType := echo.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	return moderation.CheckRequest{
		Content:     content,
		ContentType: contentType,
		MediaURL:    echo.MediaURL,
	}
}
