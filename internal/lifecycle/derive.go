package lifecycle

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// DeriveScheduleStatus computes a schedule status from its window and the current time.
// Cancelled schedules keep their status.
func DeriveScheduleStatus(current models.ScheduleStatus, start, end, now time.Time) models.ScheduleStatus {
	switch {
	case current == models.ScheduleStatusCancelled:
		return models.ScheduleStatusCancelled
	case now.After(end):
		return models.ScheduleStatusCompleted
	case !now.Before(start):
		return models.ScheduleStatusOngoing
	default:
		return models.ScheduleStatusPending
	}
}

// DeriveClassSubjectStatus folds schedule statuses into a class subject status.
// Cancelled schedules are ignored; at least one completed schedule is required for completion.
func DeriveClassSubjectStatus(schedules []models.ScheduleStatus) models.ClassSubjectStatus {
	counted := 0
	completed := 0
	ongoing := false
	for _, status := range schedules {
		switch status {
		case models.ScheduleStatusCancelled:
			continue
		case models.ScheduleStatusCompleted:
			completed++
		case models.ScheduleStatusOngoing:
			ongoing = true
		}
		counted++
	}

	switch {
	case counted > 0 && completed == counted:
		return models.ClassSubjectStatusCompleted
	case ongoing:
		return models.ClassSubjectStatusOngoing
	default:
		return models.ClassSubjectStatusPending
	}
}

// DeriveCourseStatus rolls class subject statuses up into an active course.
// Only active courses are derived; every other status is returned unchanged.
func DeriveCourseStatus(current models.CourseStatus, classSubjects []models.ClassSubjectStatus) models.CourseStatus {
	if current != models.CourseStatusActive {
		return current
	}

	counted := 0
	for _, status := range classSubjects {
		if status == models.ClassSubjectStatusCancelled {
			continue
		}
		if status != models.ClassSubjectStatusCompleted {
			return models.CourseStatusActive
		}
		counted++
	}

	if counted == 0 {
		return models.CourseStatusActive
	}
	return models.CourseStatusCompleted
}
