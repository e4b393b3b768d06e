package models

import "time"

// IncidentCandidate - неподтвержденное обнаружение, построенное по одному кадру.
// Собственного идентификатора нет: кандидат либо отбрасывается, либо становится Incident.
type IncidentCandidate struct {
	Type         IncidentType `json:"type"`
	Severity     Severity     `json:"severity"`
	Location     Location     `json:"location"`
	Confidence   float64      `json:"confidence"`
	EvidenceRef  string       `json:"evidence_ref,omitempty"`
	ObservedAt   time.Time    `json:"observed_at"`
	CameraID     string       `json:"camera_id"`
	VehicleCount int          `json:"vehicle_count"`
	Description  string       `json:"description,omitempty"`
}
