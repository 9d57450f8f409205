package models

// All lists every persisted model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&TrainingPlan{},
		&Course{},
		&Subject{},
		&Class{},
		&ClassSubject{},
		&TrainingSchedule{},
		&TraineeAssignment{},
		&InstructorAssignment{},
		&Grade{},
		&Certificate{},
		&CertificateRenewal{},
		&Request{},
		&DecisionTemplate{},
		&Decision{},
		&Notification{},
		&ActivityLog{},
	}
}
