package lifecycle

import (
	"fmt"
	"strings"
)

// EntityType names an entity whose status is derived by progress tracking.
type EntityType string

// Entity types accepted by on-demand recomputation.
const (
	EntitySchedule     EntityType = "schedule"
	EntityClassSubject EntityType = "class_subject"
	EntityCourse       EntityType = "course"
)

// EntityRef identifies one entity for recomputation.
type EntityRef struct {
	Type EntityType
	ID   uint
}

// ParseEntityType normalises user supplied entity type names.
func ParseEntityType(value string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "schedule", "training_schedule":
		return EntitySchedule, nil
	case "class_subject", "class-subject", "classsubject":
		return EntityClassSubject, nil
	case "course":
		return EntityCourse, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", value)
	}
}

// String renders the reference for logs.
func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}
