package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID         uint                   `json:"id"`
	UserID     string                 `json:"user_id"`
	Type       string                 `json:"type"`
	EntityType string                 `json:"entity_type"`
	EntityID   uint                   `json:"entity_id"`
	Message    string                 `json:"message"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Read       bool                   `json:"read"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NotificationListResponse wraps notifications with the unread counter.
type NotificationListResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         model.ID,
		UserID:     model.UserID,
		Type:       model.Type,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Message:    model.Message,
		Payload:    metadataFromJSON(model.Payload),
		Read:       model.Read,
		CreatedAt:  model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
