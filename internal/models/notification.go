package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a lifecycle event delivered to a specific user.
type Notification struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UserID     string            `gorm:"size:64;index" json:"user_id"`
	Type       string            `gorm:"size:64" json:"type"`
	EntityType string            `gorm:"size:64" json:"entity_type"`
	EntityID   uint              `json:"entity_id"`
	Message    string            `gorm:"type:text" json:"message"`
	Payload    datatypes.JSONMap `gorm:"type:json" json:"payload"`
	Read       bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
