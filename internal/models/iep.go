package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanStatus tracks whether an IEP plan is in force.
type PlanStatus string

const (
	PlanActive  PlanStatus = "active"
	PlanExpired PlanStatus = "expired"
	PlanDraft   PlanStatus = "draft"
)

// Valid reports whether the status is known.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanActive, PlanExpired, PlanDraft:
		return true
	default:
		return false
	}
}

// GoalStatus tracks a single goal inside a plan.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// IEPGoal is one entry of a plan's ordered goal list.
type IEPGoal struct {
	Area       FocusArea  `json:"area"`
	Goal       string     `json:"goal"`
	Baseline   string     `json:"baseline,omitempty"`
	TargetDate string     `json:"target_date,omitempty"`
	Strategies []string   `json:"strategies"`
	Status     GoalStatus `json:"status,omitempty"`
}

// Completed reports whether the goal has been reached.
func (g IEPGoal) Completed() bool {
	return g.Status == GoalCompleted
}

// IEPPlan is an Individualized Education Plan for one student. Goals and
// accommodations are replaced as whole lists on update.
type IEPPlan struct {
	ID             uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID      uuid.UUID                    `gorm:"type:uuid;not null;index" json:"student_id"`
	CreatedBy      uuid.UUID                    `gorm:"type:uuid;not null;index" json:"created_by"`
	StartDate      time.Time                    `gorm:"type:date;not null" json:"start_date"`
	EndDate        time.Time                    `gorm:"type:date;not null" json:"end_date"`
	Goals          datatypes.JSONSlice[IEPGoal] `json:"goals"`
	Accommodations datatypes.JSONSlice[string]  `json:"accommodations"`
	Status         PlanStatus                   `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// TableName matches the plan table name.
func (IEPPlan) TableName() string {
	return "iep_plans"
}

// BeforeCreate assigns a primary key and the initial status.
func (p *IEPPlan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PlanActive
	}
	return nil
}

// IEPPlanView is a plan joined with its student's name and ownership columns.
type IEPPlanView struct {
	IEPPlan
	StudentName        string     `json:"student_name"`
	ParentID           uuid.UUID  `json:"-"`
	PrimaryTherapistID *uuid.UUID `json:"-"`
}
