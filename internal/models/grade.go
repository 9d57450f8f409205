package models

import "time"

// Grade holds the four component scores of a trainee assignment.
type Grade struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	TraineeAssignmentID uint        `gorm:"not null;uniqueIndex" json:"trainee_assignment_id"`
	ParticipationScore  *float64    `json:"participation_score"`
	AssignmentScore     *float64    `json:"assignment_score"`
	PracticalScore      *float64    `json:"practical_score"`
	FinalExamScore      *float64    `json:"final_exam_score"`
	TotalScore          *float64    `json:"total_score"`
	Status              GradeStatus `gorm:"size:32;not null;index" json:"status"`
	Remarks             string      `gorm:"type:text" json:"remarks"`
	GradedBy            uint        `json:"graded_by"`
	GradedAt            *time.Time  `json:"graded_at"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IsPassed reports whether the grade counts towards certification.
func (g Grade) IsPassed() bool {
	return g.Status == GradeStatusPassed
}
