package enums

import "fmt"

// EchoType maps to the echo_type column on geo_echoes.
type EchoType string

const (
	EchoTypeStandard EchoType = "standard"
	// EchoTypeAdmin marks the priority subset selected by priority-only runs.
	EchoTypeAdmin EchoType = "admin"
)

var validEchoTypes = []EchoType{
	EchoTypeStandard,
	EchoTypeAdmin,
}

// IsValid reports whether the value matches a known echo type.
func (e EchoType) IsValid() bool {
	for _, candidate := range validEchoTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEchoType converts raw input into an EchoType.
func ParseEchoType(value string) (EchoType, error) {
	for _, candidate := range validEchoTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid echo type %q", value)
}
