package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IncidentType - тип инцидента на дороге
type IncidentType string

const (
	IncidentTypeCongestion   IncidentType = "congestion"
	IncidentTypeAccident     IncidentType = "accident"
	IncidentTypeRoadBlockage IncidentType = "road_blockage"
	IncidentTypeHazard       IncidentType = "hazard"
)

// IncidentTypes перечисляет все допустимые типы
var IncidentTypes = []IncidentType{
	IncidentTypeCongestion,
	IncidentTypeAccident,
	IncidentTypeRoadBlockage,
	IncidentTypeHazard,
}

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentTypeCongestion, IncidentTypeAccident, IncidentTypeRoadBlockage, IncidentTypeHazard:
		return true
	}
	return false
}

// ParseIncidentType преобразует строку в IncidentType
func ParseIncidentType(s string) (IncidentType, error) {
	t := IncidentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown incident type %q", s)
	}
	return t, nil
}

// Severity - уровень срочности инцидента. Значения упорядочены.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank возвращает порядковый номер уровня (0 для неизвестного значения)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast сообщает, что уровень не ниже other
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity преобразует строку в Severity
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Status - состояние инцидента в жизненном цикле проверки
type Status string

const (
	StatusReported      Status = "reported"
	StatusVerified      Status = "verified"
	StatusInProgress    Status = "in_progress"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// Statuses перечисляет все состояния
var Statuses = []Status{
	StatusReported,
	StatusVerified,
	StatusInProgress,
	StatusResolved,
	StatusFalsePositive,
}

func (s Status) Valid() bool {
	switch s {
	case StatusReported, StatusVerified, StatusInProgress, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Terminal сообщает, что из состояния нет переходов
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// ParseStatus преобразует строку в Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Location - точка на карте с необязательным названием
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Incident - зафиксированное дорожное происшествие. ObservedAt - время кадра с камеры,
// IdempotencyKey - ключ повторной отправки того же наблюдения (пустой не проверяется).
type Incident struct {
	ID              uuid.UUID    `json:"id"`
	Type            IncidentType `json:"type"`
	Severity        Severity     `json:"severity"`
	Location        Location     `json:"location"`
	Description     string       `json:"description"`
	ConfidenceScore float64      `json:"confidence_score"`
	VehicleCount    int          `json:"vehicle_count"`
	Status          Status       `json:"status"`
	EvidenceRef     string       `json:"evidence_ref"`
	ThumbnailRef    string       `json:"thumbnail_ref"`
	CameraID        string       `json:"camera_id"`
	ReportedBy      *uuid.UUID   `json:"reported_by,omitempty"`
	VerifiedBy      *uuid.UUID   `json:"verified_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	ObservedAt      time.Time    `json:"observed_at"`
	IdempotencyKey  string       `json:"idempotency_key,omitempty"`
}

// IncidentFilter - параметры выборки списка инцидентов
type IncidentFilter struct {
	Offset   int
	Limit    int
	Status   Status
	Type     IncidentType
	Severity Severity
}

// IncidentStats - количество инцидентов по статусам за окно времени
type IncidentStats struct {
	WindowMinutes int            `json:"window_minutes"`
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"by_status"`
}
