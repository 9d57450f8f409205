package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// RecomputeRequest asks progress tracking to re-derive one entity and its ancestors.
type RecomputeRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=schedule class_subject course"`
	EntityID   uint   `json:"entity_id" validate:"required"`
}

// ScheduleResponse serializes a training schedule.
type ScheduleResponse struct {
	ID             uint      `json:"id"`
	ClassSubjectID uint      `json:"class_subject_id"`
	InstructorID   uint      `json:"instructor_id"`
	DaysOfWeek     string    `json:"days_of_week"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	StartDateTime  time.Time `json:"start_date_time"`
	EndDateTime    time.Time `json:"end_date_time"`
	Location       string    `json:"location"`
	Room           string    `json:"room"`
	Status         string    `json:"status"`
}

// NewScheduleResponse converts a schedule model into its DTO.
func NewScheduleResponse(model models.TrainingSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:             model.ID,
		ClassSubjectID: model.ClassSubjectID,
		InstructorID:   model.InstructorID,
		DaysOfWeek:     model.DaysOfWeek,
		StartTime:      model.StartTime,
		EndTime:        model.EndTime,
		StartDateTime:  model.StartDateTime,
		EndDateTime:    model.EndDateTime,
		Location:       model.Location,
		Room:           model.Room,
		Status:         string(model.Status),
	}
}

// StatusResponse reports the status of an entity after an administrative action.
type StatusResponse struct {
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	Status     string `json:"status"`
}
