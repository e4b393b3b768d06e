package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIncidentRequest DTO для приема инцидента от детектора
// @Description DTO для приема инцидента от детектора
type CreateIncidentRequest struct {
	Type            string     `json:"type" validate:"required,oneof=congestion accident road_blockage hazard"`
	Severity        string     `json:"severity" validate:"required,oneof=low medium high critical"`
	Latitude        *float64   `json:"latitude" validate:"required,latitude"`
	Longitude       *float64   `json:"longitude" validate:"required,longitude"`
	LocationName    string     `json:"location_name,omitempty" validate:"max=255"`
	Description     string     `json:"description,omitempty"`
	ConfidenceScore float64    `json:"confidence_score" validate:"gte=0,lte=1"`
	VehicleCount    int        `json:"vehicle_count" validate:"gte=0"`
	EvidenceRef     string     `json:"evidence_ref,omitempty"`
	ThumbnailRef    string     `json:"thumbnail_ref,omitempty"`
	CameraID        string     `json:"camera_id,omitempty" validate:"max=255"`
	ReportedBy      string     `json:"reported_by,omitempty" validate:"omitempty,uuid"`
	ObservedAt      *time.Time `json:"observed_at,omitempty"`
}

// TransitionRequest DTO для смены статуса инцидента
// @Description DTO для смены статуса инцидента
type TransitionRequest struct {
	Status  string `json:"status" validate:"required,oneof=reported verified in_progress resolved false_positive"`
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

// LocationResponse DTO местоположения
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID              uuid.UUID        `json:"id"`
	Type            string           `json:"type"`
	Severity        string           `json:"severity"`
	Location        LocationResponse `json:"location"`
	Description     string           `json:"description,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
	VehicleCount    int              `json:"vehicle_count"`
	Status          string           `json:"status"`
	EvidenceRef     string           `json:"evidence_ref,omitempty"`
	ThumbnailRef    string           `json:"thumbnail_ref,omitempty"`
	CameraID        string           `json:"camera_id,omitempty"`
	ReportedBy      *uuid.UUID       `json:"reported_by,omitempty"`
	VerifiedBy      *uuid.UUID       `json:"verified_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	ObservedAt      time.Time        `json:"observed_at"`
}

// StatsResponse DTO для ответа со статистикой
// @Description Количество инцидентов по статусам за окно времени
type StatsResponse struct {
	WindowMinutes int            `json:"window_minutes"`
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
}

// AlertResponse DTO оповещения
// @Description DTO оповещения
type AlertResponse struct {
	ID               uuid.UUID         `json:"id"`
	IncidentID       *uuid.UUID        `json:"incident_id,omitempty"`
	Channel          string            `json:"channel"`
	Audience         string            `json:"audience"`
	Area             *LocationResponse `json:"area,omitempty"`
	AreaRadiusMeters int               `json:"area_radius_meters,omitempty"`
	Title            string            `json:"title"`
	Message          string            `json:"message"`
	SentAt           time.Time         `json:"sent_at"`
	DeliveredCount   int               `json:"delivered_count"`
	ReadCount        int               `json:"read_count"`
}
