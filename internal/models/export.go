package models

import "time"

// ExportType selects the report query behind an export job.
type ExportType string

const (
	ExportRequests ExportType = "requests"
	ExportPayments ExportType = "payments"
	ExportKYC      ExportType = "kyc"
)

func (t ExportType) Valid() bool {
	switch t {
	case ExportRequests, ExportPayments, ExportKYC:
		return true
	}
	return false
}

// ExportFormat is the serialization of the materialized report.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// Ext returns the file extension for the format.
func (f ExportFormat) Ext() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

// ExportStatus has no intermediate state: generation is atomic from the
// worker's perspective.
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportFilters narrows the rows included in a report.
type ExportFilters struct {
	Status string     `json:"status,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
}

// ExportJob is the persisted record for a queued report export.
// StorageKey is set if and only if Status is completed.
type ExportJob struct {
	ID          string        `json:"id"`
	RequestedBy string        `json:"requestedBy,omitempty"`
	Type        ExportType    `json:"type"`
	Filters     ExportFilters `json:"filters"`
	Format      ExportFormat  `json:"format"`
	StorageKey  string        `json:"storageKey,omitempty"`
	Status      ExportStatus  `json:"status"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}
