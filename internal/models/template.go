package models

import "time"

// Template is keyed by (key, locale). Deactivation is soft so historical
// renders stay auditable; lookups always filter on IsActive.
type Template struct {
	Key             string    `json:"key"`
	Locale          string    `json:"locale"`
	SubjectTemplate string    `json:"subjectTemplate"`
	BodyTemplate    string    `json:"bodyTemplate"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DefaultLocale is applied when a caller does not specify one.
const DefaultLocale = "en_IN"
