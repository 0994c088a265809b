package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&School{},
		&SchoolStaff{},
		&Student{},
		&StudentSchoolEnrollment{},
		&TherapySession{},
		&IEPPlan{},
		&ProgressRecord{},
		&AIAnalysisResult{},
		&ActivityLog{},
	}
}
