package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	taskDB "workflow-cycle-service/internal/workflow-manager/db"
	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/status"
)

// MisconfiguredWorkflowError marks a workflow that cannot start a cycle: no
// task templates, or no resolvable creator. It is reported through the
// notifier and logged, but never aborts sibling workflows in a scheduled run.
type MisconfiguredWorkflowError struct {
	WorkflowID uint
	Reason     string
}

func (e *MisconfiguredWorkflowError) Error() string {
	return fmt.Sprintf("workflow %d cannot start a cycle: %s", e.WorkflowID, e.Reason)
}

// CycleService owns the cycle lifecycle: building a cycle tree from a
// workflow template, advancing the workflow's schedule afterwards, and the
// scheduled catch-up run for recurring workflows.
type CycleService struct {
	DB       *gorm.DB
	Notifier Notifier
	Users    UserResolver

	// Now supplies "today" and is replaceable in tests.
	Now func() time.Time
}

func NewCycleService(db *gorm.DB, notifier Notifier, users UserResolver) *CycleService {
	return &CycleService{DB: db, Notifier: notifier, Users: users, Now: time.Now}
}

// BuildCycle creates (or populates, when existing is passed) one cycle tree
// from the workflow template inside the given transaction: a cycle, one cycle
// task group per task group, one cycle task per task template, dates resolved
// by the calculator against the cycle's start basis. On success the
// workflow's next_cycle_start_date advances and repeat_multiplier counts the
// periods stepped over.
func (s *CycleService) BuildCycle(ctx context.Context, tx *gorm.DB, workflow *taskDB.Workflow, actorID uint, existing *taskDB.Cycle) (*taskDB.Cycle, error) {
	var groups []taskDB.TaskGroup
	if err := tx.Preload("Tasks").Where("workflow_id = ?", workflow.ID).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to load task groups for workflow %d: %w", workflow.ID, err)
	}

	var specs []scheduling.TaskSpec
	for _, g := range groups {
		for _, t := range g.Tasks {
			specs = append(specs, t.Spec())
		}
	}
	if len(specs) == 0 {
		err := &MisconfiguredWorkflowError{WorkflowID: workflow.ID, Reason: "workflow has no task templates"}
		log.Printf("CycleService: %v", err)
		s.Notifier.CycleStartFailed(ctx, workflow.ID, err.Reason)
		return nil, err
	}

	creatorID, ok := s.Users.ResolveCreator(workflow.ID, actorID)
	if !ok {
		err := &MisconfiguredWorkflowError{WorkflowID: workflow.ID, Reason: "no resolvable creator or fallback admin"}
		log.Printf("CycleService: %v", err)
		s.Notifier.CycleStartFailed(ctx, workflow.ID, err.Reason)
		return nil, err
	}

	calc := scheduling.NewCalculator(workflow.Unit, specs)

	var basis time.Time
	if workflow.NextCycleStartDate != nil {
		basis = scheduling.DateOnly(*workflow.NextCycleStartDate)
	} else {
		b, err := calc.NearestStartDateAfterBasedate(s.Now())
		if err != nil {
			return nil, err
		}
		basis = b
	}

	cycle := existing
	if cycle == nil {
		cycle = &taskDB.Cycle{}
	}
	cycle.WorkflowID = workflow.ID
	if cycle.Title == "" {
		cycle.Title = fmt.Sprintf("%s %s", workflow.Title, basis.Format("2006-01-02"))
	}
	cycle.Status = status.StatusAssigned
	cycle.IsCurrent = true
	cycle.IsVerificationNeeded = workflow.IsVerificationNeeded
	cycle.CreatedByID = creatorID
	cycle.ModifiedByID = creatorID
	if err := tx.Save(cycle).Error; err != nil {
		return nil, fmt.Errorf("failed to create cycle for workflow %d: %w", workflow.ID, err)
	}

	var minTaskStart *time.Time
	var cycleChildren []status.Child
	for _, g := range groups {
		cycleGroup := taskDB.CycleTaskGroup{
			CycleID:     cycle.ID,
			TaskGroupID: g.ID,
			Title:       g.Title,
			Status:      status.StatusAssigned,
		}
		if err := tx.Create(&cycleGroup).Error; err != nil {
			return nil, fmt.Errorf("failed to create cycle task group for group %d: %w", g.ID, err)
		}

		var groupChildren []status.Child
		for _, t := range g.Tasks {
			rawStart, rawEnd, err := calc.TaskDateRange(basis, t.Spec())
			if err != nil {
				// date-logic errors point at authoring bugs; surface, never swallow
				s.Notifier.CycleStartFailed(ctx, workflow.ID, err.Error())
				return nil, err
			}
			if minTaskStart == nil || rawStart.Before(*minTaskStart) {
				d := rawStart
				minTaskStart = &d
			}
			start := scheduling.AdjustStartDate(workflow.Unit, rawStart)
			end := scheduling.AdjustEndDate(workflow.Unit, rawEnd)
			cycleTask := taskDB.CycleTask{
				CycleTaskGroupID: cycleGroup.ID,
				TaskTemplateID:   t.ID,
				Title:            t.Title,
				Description:      t.Description,
				Status:           status.StatusAssigned,
				StartDate:        &start,
				EndDate:          &end,
				CreatedByID:      creatorID,
				ModifiedByID:     creatorID,
			}
			if err := tx.Create(&cycleTask).Error; err != nil {
				return nil, fmt.Errorf("failed to create cycle task for template %d: %w", t.ID, err)
			}
			groupChildren = append(groupChildren, status.Child{
				Status:    cycleTask.Status,
				StartDate: cycleTask.StartDate,
				EndDate:   cycleTask.EndDate,
			})
		}

		span := status.Span(groupChildren, cycle.IsVerificationNeeded)
		cycleGroup.StartDate = span.StartDate
		cycleGroup.EndDate = span.EndDate
		cycleGroup.NextDueDate = span.NextDueDate
		if err := tx.Save(&cycleGroup).Error; err != nil {
			return nil, fmt.Errorf("failed to update cycle task group %d dates: %w", cycleGroup.ID, err)
		}
		cycleChildren = append(cycleChildren, status.Child{
			Status:    cycleGroup.Status,
			StartDate: cycleGroup.StartDate,
			EndDate:   cycleGroup.EndDate,
		})
	}

	cycleSpan := status.Span(cycleChildren, cycle.IsVerificationNeeded)
	cycle.StartDate = cycleSpan.StartDate
	cycle.EndDate = cycleSpan.EndDate
	cycle.NextDueDate = cycleSpan.NextDueDate
	if err := tx.Save(cycle).Error; err != nil {
		return nil, fmt.Errorf("failed to update cycle %d dates: %w", cycle.ID, err)
	}

	if workflow.Unit.Recurring() && minTaskStart != nil {
		// the calculator advances one period per call; the driver is the
		// external looper for repeat_every > 1
		periods := 1
		if workflow.RepeatEvery != nil && *workflow.RepeatEvery > 1 {
			periods = *workflow.RepeatEvery
		}
		next := *minTaskStart
		for i := 0; i < periods; i++ {
			n, err := calc.NearestStartDateAfterBasedate(next.AddDate(0, 0, 1))
			if err != nil {
				return nil, err
			}
			next = n
			workflow.RepeatMultiplier++
		}
		workflow.NextCycleStartDate = &next
	} else {
		workflow.NextCycleStartDate = nil
	}
	workflow.ModifiedByID = creatorID
	if err := tx.Save(workflow).Error; err != nil {
		return nil, fmt.Errorf("failed to advance workflow %d schedule: %w", workflow.ID, err)
	}

	s.Notifier.CycleCreated(ctx, workflow.ID, cycle.ID, basis)
	log.Printf("CycleService: built cycle %d for workflow %d starting %s", cycle.ID, workflow.ID, basis.Format("2006-01-02"))
	return cycle, nil
}

// StartRecurringCycles is the scheduled entry point: every active recurring
// workflow whose next_cycle_start_date has arrived gets its missed cycles
// built in sequence, one committed transaction per cycle so a partial failure
// leaves the earlier cycles durable. A failing workflow is logged and skipped;
// the next scheduled run retries it.
func (s *CycleService) StartRecurringCycles(ctx context.Context) {
	today := scheduling.DateOnly(s.Now())
	var workflows []taskDB.Workflow
	err := s.DB.
		Where("status = ? AND unit <> ? AND next_cycle_start_date IS NOT NULL AND next_cycle_start_date <= ?",
			taskDB.WorkflowActive, scheduling.UnitOneTime, today).
		Find(&workflows).Error
	if err != nil {
		log.Printf("CycleService: error fetching due workflows: %v", err)
		return
	}
	log.Printf("CycleService: %d workflows due for cycle creation on %s", len(workflows), today.Format("2006-01-02"))

	for i := range workflows {
		workflow := &workflows[i]
		for workflow.NextCycleStartDate != nil && !workflow.NextCycleStartDate.After(today) {
			prev := *workflow.NextCycleStartDate
			err := s.DB.Transaction(func(tx *gorm.DB) error {
				_, buildErr := s.BuildCycle(ctx, tx, workflow, 0, nil)
				return buildErr
			})
			if err != nil {
				log.Printf("CycleService: cycle build failed for workflow %d: %v", workflow.ID, err)
				break
			}
			if workflow.NextCycleStartDate != nil && !workflow.NextCycleStartDate.After(prev) {
				log.Printf("CycleService: workflow %d schedule did not advance past %s, stopping catch-up", workflow.ID, prev.Format("2006-01-02"))
				break
			}
		}
	}
}

// RecomputeNextCycleStartDate refreshes a workflow's schedule after its task
// templates change. Deleting the last template clears the date; adding a
// template with an earlier relative start pulls the date earlier.
func (s *CycleService) RecomputeNextCycleStartDate(workflow *taskDB.Workflow) error {
	var groups []taskDB.TaskGroup
	if err := s.DB.Preload("Tasks").Where("workflow_id = ?", workflow.ID).Find(&groups).Error; err != nil {
		return err
	}
	var specs []scheduling.TaskSpec
	for _, g := range groups {
		for _, t := range g.Tasks {
			specs = append(specs, t.Spec())
		}
	}
	if len(specs) == 0 {
		workflow.NextCycleStartDate = nil
		return s.DB.Save(workflow).Error
	}
	calc := scheduling.NewCalculator(workflow.Unit, specs)
	next, err := calc.NearestStartDateAfterBasedate(s.Now())
	if err != nil {
		return err
	}
	workflow.NextCycleStartDate = &next
	return s.DB.Save(workflow).Error
}
