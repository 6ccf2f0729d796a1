package enums

import "fmt"

// ModerationStatus maps to the moderation_status column on geo_echoes.
// The empty value means the echo has never been through the final check.
type ModerationStatus string

const (
	ModerationUnset    ModerationStatus = ""
	ModerationApproved ModerationStatus = "approved"
	ModerationFlagged  ModerationStatus = "flagged"
	ModerationError    ModerationStatus = "error"
)

var validModerationStatuses = []ModerationStatus{
	ModerationUnset,
	ModerationApproved,
	ModerationFlagged,
	ModerationError,
}

// IsValid reports whether the value matches a known moderation status.
func (m ModerationStatus) IsValid() bool {
	for _, candidate := range validModerationStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the uploader will never revisit this status.
func (m ModerationStatus) IsTerminal() bool {
	return m == ModerationApproved || m == ModerationFlagged
}

// ParseModerationStatus converts raw input into a ModerationStatus.
func ParseModerationStatus(value string) (ModerationStatus, error) {
	for _, candidate := range validModerationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid moderation status %q", value)
}
