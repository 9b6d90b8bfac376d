package export

import "finserv-workers/internal/models"

// TaskPayload is the flat queue payload for one export job.
type TaskPayload struct {
	JobID       string               `json:"jobId"`
	Type        models.ExportType    `json:"type"`
	Filters     models.ExportFilters `json:"filters"`
	Format      models.ExportFormat  `json:"format"`
	RequestedBy string               `json:"requestedBy,omitempty"`
}

// EnqueueRequest is the producer-side input for creating an export job.
type EnqueueRequest struct {
	RequestedBy string               `json:"requestedBy,omitempty"`
	Type        models.ExportType    `json:"type"`
	Filters     models.ExportFilters `json:"filters"`
	Format      models.ExportFormat  `json:"format"`
}

// report is a materialized result set: a fixed header plus stringified rows.
type report struct {
	Columns []string
	Rows    [][]string
}
