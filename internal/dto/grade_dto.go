package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// GradeRecordRequest records one or more grade components. Omitted components keep their value.
type GradeRecordRequest struct {
	ParticipationScore *float64 `json:"participation_score" validate:"omitempty,gte=0,lte=100"`
	AssignmentScore    *float64 `json:"assignment_score" validate:"omitempty,gte=0,lte=100"`
	PracticalScore     *float64 `json:"practical_score" validate:"omitempty,gte=0,lte=100"`
	FinalExamScore     *float64 `json:"final_exam_score" validate:"omitempty,gte=0,lte=100"`
	Remarks            string   `json:"remarks" validate:"max=1000"`
}

// GradeResponse serializes a grade.
type GradeResponse struct {
	ID                  uint       `json:"id"`
	TraineeAssignmentID uint       `json:"trainee_assignment_id"`
	ParticipationScore  *float64   `json:"participation_score"`
	AssignmentScore     *float64   `json:"assignment_score"`
	PracticalScore      *float64   `json:"practical_score"`
	FinalExamScore      *float64   `json:"final_exam_score"`
	TotalScore          *float64   `json:"total_score"`
	Status              string     `json:"status"`
	Remarks             string     `json:"remarks"`
	GradedBy            uint       `json:"graded_by"`
	GradedAt            *time.Time `json:"graded_at"`
}

// NewGradeResponse converts a grade model into its DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:                  model.ID,
		TraineeAssignmentID: model.TraineeAssignmentID,
		ParticipationScore:  model.ParticipationScore,
		AssignmentScore:     model.AssignmentScore,
		PracticalScore:      model.PracticalScore,
		FinalExamScore:      model.FinalExamScore,
		TotalScore:          model.TotalScore,
		Status:              string(model.Status),
		Remarks:             model.Remarks,
		GradedBy:            model.GradedBy,
		GradedAt:            model.GradedAt,
	}
}
