package models

import "time"

// Roles recognised by the approval workflow and RBAC middleware.
const (
	RoleAdmin         = "admin"
	RoleTrainingStaff = "training_staff"
	RoleInstructor    = "instructor"
	RoleTrainee       = "trainee"
)

// User is an actor of the training program: trainee, instructor or staff member.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role         string    `gorm:"size:32;not null;index" json:"role"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
