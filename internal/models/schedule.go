package models

import "time"

// TrainingSchedule is a recurring timeslot of a class subject bounded by a date window.
type TrainingSchedule struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ClassSubjectID uint           `gorm:"not null;index" json:"class_subject_id"`
	InstructorID   uint           `gorm:"not null;index" json:"instructor_id"`
	DaysOfWeek     string         `gorm:"size:64" json:"days_of_week"`
	StartTime      string         `gorm:"size:8" json:"start_time"`
	EndTime        string         `gorm:"size:8" json:"end_time"`
	StartDateTime  time.Time      `gorm:"not null" json:"start_date_time"`
	EndDateTime    time.Time      `gorm:"not null" json:"end_date_time"`
	Location       string         `gorm:"size:255" json:"location"`
	Room           string         `gorm:"size:64" json:"room"`
	Status         ScheduleStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
