package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// IEPGoalRequest is one goal of a plan payload.
type IEPGoalRequest struct {
	Area       string   `json:"area" validate:"required,oneof=academic emotional linguistic sensory behavioral life_skills"`
	Goal       string   `json:"goal" validate:"required,min=1,max=2000"`
	Baseline   string   `json:"baseline" validate:"omitempty,max=2000"`
	TargetDate string   `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`
	Strategies []string `json:"strategies" validate:"omitempty,dive,min=1,max=500"`
	Status     string   `json:"status" validate:"omitempty,oneof=active completed"`
}

// IEPPlanCreateRequest captures the payload for opening a plan.
type IEPPlanCreateRequest struct {
	StudentID      string           `json:"studentId" validate:"required,uuid"`
	StartDate      string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	Goals          []IEPGoalRequest `json:"goals" validate:"required,min=1,dive"`
	Accommodations []string         `json:"accommodations" validate:"omitempty,dive,min=1,max=500"`
	Status         *string          `json:"status" validate:"omitempty,oneof=active draft"`
}

// IEPPlanUpdateRequest captures partial updates. Goals and accommodations
// replace the stored lists whole when present.
type IEPPlanUpdateRequest struct {
	StartDate      *string          `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate        *string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Goals          []IEPGoalRequest `json:"goals" validate:"omitempty,min=1,dive"`
	Accommodations []string         `json:"accommodations" validate:"omitempty,dive,min=1,max=500"`
	Status         *string          `json:"status" validate:"omitempty,oneof=active expired draft"`
}

// Empty reports whether the update carries no fields.
func (r IEPPlanUpdateRequest) Empty() bool {
	return r.StartDate == nil && r.EndDate == nil && r.Goals == nil && r.Accommodations == nil && r.Status == nil
}

// IEPPlanResponse is the public view of a plan.
type IEPPlanResponse struct {
	ID             uuid.UUID        `json:"id"`
	StudentID      uuid.UUID        `json:"student_id"`
	StudentName    string           `json:"student_name,omitempty"`
	CreatedBy      uuid.UUID        `json:"created_by"`
	StartDate      string           `json:"start_date"`
	EndDate        string           `json:"end_date"`
	Goals          []models.IEPGoal `json:"goals"`
	Accommodations []string         `json:"accommodations"`
	Status         string           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewIEPPlanResponse maps a plan model.
func NewIEPPlanResponse(plan models.IEPPlan) IEPPlanResponse {
	goals := []models.IEPGoal(plan.Goals)
	if goals == nil {
		goals = []models.IEPGoal{}
	}
	accommodations := []string(plan.Accommodations)
	if accommodations == nil {
		accommodations = []string{}
	}

	return IEPPlanResponse{
		ID:             plan.ID,
		StudentID:      plan.StudentID,
		CreatedBy:      plan.CreatedBy,
		StartDate:      plan.StartDate.Format(DateLayout),
		EndDate:        plan.EndDate.Format(DateLayout),
		Goals:          goals,
		Accommodations: accommodations,
		Status:         string(plan.Status),
		CreatedAt:      plan.CreatedAt,
		UpdatedAt:      plan.UpdatedAt,
	}
}

// NewIEPPlanViewResponse maps a plan joined with its student's name.
func NewIEPPlanViewResponse(view models.IEPPlanView) IEPPlanResponse {
	response := NewIEPPlanResponse(view.IEPPlan)
	response.StudentName = view.StudentName
	return response
}

// NewIEPPlanViewResponses maps a slice of joined plans.
func NewIEPPlanViewResponses(views []models.IEPPlanView) []IEPPlanResponse {
	responses := make([]IEPPlanResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, NewIEPPlanViewResponse(view))
	}
	return responses
}
