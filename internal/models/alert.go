package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel - канал доставки оповещения
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelPush, ChannelSMS, ChannelEmail, ChannelInApp:
		return true
	}
	return false
}

// ParseChannel преобразует строку в Channel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown alert channel %q", s)
	}
	return c, nil
}

// Audience - целевая аудитория оповещения
type Audience string

const (
	AudienceAll          Audience = "all"
	AudiencePolice       Audience = "police"
	AudiencePublic       Audience = "public"
	AudienceSpecificArea Audience = "specific_area"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudiencePolice, AudiencePublic, AudienceSpecificArea:
		return true
	}
	return false
}

// ParseAudience преобразует строку в Audience
func ParseAudience(s string) (Audience, error) {
	a := Audience(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown alert audience %q", s)
	}
	return a, nil
}

// Alert - запись об оповещении. После создания меняются только счетчики.
type Alert struct {
	ID         uuid.UUID  `json:"id"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
	Channel    Channel    `json:"channel"`
	Audience   Audience   `json:"audience"`
	// Area заполняется только для AudienceSpecificArea
	Area             *Location `json:"area,omitempty"`
	AreaRadiusMeters int       `json:"area_radius_meters,omitempty"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	SentAt           time.Time `json:"sent_at"`
	DeliveredCount   int       `json:"delivered_count"`
	ReadCount        int       `json:"read_count"`
}

// AlertTrigger - событие жизненного цикла, на которое срабатывает правило рассылки
type AlertTrigger string

const (
	TriggerCreated       AlertTrigger = "created"
	TriggerVerified      AlertTrigger = AlertTrigger(StatusVerified)
	TriggerInProgress    AlertTrigger = AlertTrigger(StatusInProgress)
	TriggerResolved      AlertTrigger = AlertTrigger(StatusResolved)
	TriggerFalsePositive AlertTrigger = AlertTrigger(StatusFalsePositive)
)

func (t AlertTrigger) Valid() bool {
	switch t {
	case TriggerCreated, TriggerVerified, TriggerInProgress, TriggerResolved, TriggerFalsePositive:
		return true
	}
	return false
}

// TriggerForStatus возвращает событие перехода в статус
func TriggerForStatus(s Status) AlertTrigger {
	return AlertTrigger(s)
}
