package models

import "time"

// Setting is a single runtime knob. Readers fall back to hardcoded defaults
// when a key is absent, so an empty table is a valid configuration.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
