package models

import "github.com/google/uuid"

// Role - роль участника системы
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePolice Role = "police"
	RolePublic Role = "public"
)

// Actor - пользователь, выполняющий действие над инцидентом. В ядре используется только ID.
type Actor struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Contact string    `json:"contact,omitempty"`
}
