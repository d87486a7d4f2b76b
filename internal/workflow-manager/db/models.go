package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/status"
)

// WorkflowStatus is the authoring state of a workflow template.
type WorkflowStatus string

const (
	WorkflowDraft    WorkflowStatus = "Draft"
	WorkflowActive   WorkflowStatus = "Active"
	WorkflowInactive WorkflowStatus = "Inactive"
)

// Workflow is an authored workflow template: recurrence settings plus the
// task groups that seed each cycle.
type Workflow struct {
	gorm.Model
	Title                string                 `json:"title" gorm:"index"`
	Description          string                 `json:"description"`
	Unit                 scheduling.Unit        `json:"unit" gorm:"index"`
	RepeatEvery          *int                   `json:"repeat_every"` // periods per cycle, nil for one-time
	RepeatMultiplier     int                    `json:"repeat_multiplier"`
	NextCycleStartDate   *time.Time             `json:"next_cycle_start_date" gorm:"index"`
	Status               WorkflowStatus         `json:"status" gorm:"index"`
	IsVerificationNeeded bool                   `json:"is_verification_needed"`
	CreatedByID          uint                   `json:"created_by_id"`
	ModifiedByID         uint                   `json:"modified_by_id"`
	TaskGroups           []TaskGroup            `json:"task_groups,omitempty"`
	Cycles               []Cycle                `json:"-"`
}

// ValidateRecurrence rejects malformed recurrence configuration at the
// mutation boundary, before it can reach the calculator.
func (w *Workflow) ValidateRecurrence() error {
	if !w.Unit.Valid() {
		return fmt.Errorf("unknown recurrence unit %q", w.Unit)
	}
	if w.Unit == scheduling.UnitOneTime {
		if w.RepeatEvery != nil {
			return errors.New("one-time workflows must not set repeat_every")
		}
		return nil
	}
	if w.RepeatEvery != nil && *w.RepeatEvery < 1 {
		return fmt.Errorf("repeat_every must be a positive integer, got %d", *w.RepeatEvery)
	}
	return nil
}

// TaskGroup bundles task templates within a workflow.
type TaskGroup struct {
	gorm.Model
	WorkflowID  uint           `json:"workflow_id" gorm:"index"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tasks       []TaskTemplate `json:"tasks,omitempty"`
}

// TaskTemplate is one authored task: absolute dates for one-time workflows,
// relative month/day offsets otherwise.
type TaskTemplate struct {
	gorm.Model
	TaskGroupID        uint       `json:"task_group_id" gorm:"index"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
	RelativeStartMonth *int       `json:"relative_start_month"`
	RelativeStartDay   *int       `json:"relative_start_day"`
	RelativeEndMonth   *int       `json:"relative_end_month"`
	RelativeEndDay     *int       `json:"relative_end_day"`
}

// Spec exposes the template's scheduling fields to the date calculator.
func (t TaskTemplate) Spec() scheduling.TaskSpec {
	return scheduling.TaskSpec{
		StartDate:          t.StartDate,
		EndDate:            t.EndDate,
		RelativeStartMonth: t.RelativeStartMonth,
		RelativeStartDay:   t.RelativeStartDay,
		RelativeEndMonth:   t.RelativeEndMonth,
		RelativeEndDay:     t.RelativeEndDay,
	}
}

// Cycle is one concrete, dated instantiation of a workflow template. It stays
// current until every descendant task resolves, then becomes historical; the
// core never deletes cycles.
type Cycle struct {
	gorm.Model
	WorkflowID           uint             `json:"workflow_id" gorm:"index"`
	Title                string           `json:"title"`
	Status               status.Status    `json:"status" gorm:"index"`
	IsCurrent            bool             `json:"is_current" gorm:"index"`
	IsVerificationNeeded bool             `json:"is_verification_needed"`
	StartDate            *time.Time       `json:"start_date"`
	EndDate              *time.Time       `json:"end_date"`
	NextDueDate          *time.Time       `json:"next_due_date"`
	CreatedByID          uint             `json:"created_by_id"`
	ModifiedByID         uint             `json:"modified_by_id"`
	TaskGroups           []CycleTaskGroup `json:"task_groups,omitempty"`
}

// CycleTaskGroup is a task group instantiated into a cycle; its status and
// dates are reduced from its tasks.
type CycleTaskGroup struct {
	gorm.Model
	CycleID     uint          `json:"cycle_id" gorm:"index"`
	TaskGroupID uint          `json:"task_group_id"`
	Title       string        `json:"title"`
	Status      status.Status `json:"status" gorm:"index"`
	StartDate   *time.Time    `json:"start_date"`
	EndDate     *time.Time    `json:"end_date"`
	NextDueDate *time.Time    `json:"next_due_date"`
	Tasks       []CycleTask   `json:"tasks,omitempty"`
}

// CycleTask is the leaf node of a cycle tree. FinishedDate and VerifiedDate
// are non-nil only while the status is Finished/Verified respectively; any
// rollback clears them.
type CycleTask struct {
	gorm.Model
	CycleTaskGroupID uint          `json:"cycle_task_group_id" gorm:"index"`
	TaskTemplateID   uint          `json:"task_template_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Status           status.Status `json:"status" gorm:"index"`
	StartDate        *time.Time    `json:"start_date"`
	EndDate          *time.Time    `json:"end_date"`
	FinishedDate     *time.Time    `json:"finished_date"`
	VerifiedDate     *time.Time    `json:"verified_date"`
	CreatedByID      uint          `json:"created_by_id"`
	ModifiedByID     uint          `json:"modified_by_id"`
}
