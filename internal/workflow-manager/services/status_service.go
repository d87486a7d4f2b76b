package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	taskDB "workflow-cycle-service/internal/workflow-manager/db"
	"workflow-cycle-service/internal/workflow-manager/events"
	"workflow-cycle-service/internal/workflow-manager/status"
)

// StatusService applies explicit status edits to a cycle tree. Each edit runs
// as one ordered sequence under a per-cycle lock: apply the edit, cascade
// downward, aggregate upward, re-derive the workflow status. The lock keeps
// two concurrent edits on the same cycle from interleaving into an
// inconsistent reduced status.
type StatusService struct {
	DB *gorm.DB

	Now func() time.Time

	locks sync.Map // cycle ID -> *sync.Mutex
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{DB: db, Now: time.Now}
}

func (s *StatusService) cycleLock(cycleID uint) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(cycleID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// applyTaskStatus sets a task's status and keeps the finished/verified
// timestamps consistent with it: Finished stamps finished_date, Verified
// stamps both, and leaving those states clears the corresponding dates.
func applyTaskStatus(task *taskDB.CycleTask, newStatus status.Status, actorID uint, now time.Time) {
	task.Status = newStatus
	if actorID != 0 {
		task.ModifiedByID = actorID
	}
	switch newStatus {
	case status.StatusFinished:
		if task.FinishedDate == nil {
			task.FinishedDate = &now
		}
		task.VerifiedDate = nil
	case status.StatusVerified:
		if task.FinishedDate == nil {
			task.FinishedDate = &now
		}
		if task.VerifiedDate == nil {
			task.VerifiedDate = &now
		}
	default:
		task.FinishedDate = nil
		task.VerifiedDate = nil
	}
}

// UpdateTaskStatus handles an explicit status edit on a single cycle task.
func (s *StatusService) UpdateTaskStatus(taskID uint, newStatus status.Status, actorID uint) (*taskDB.CycleTask, error) {
	if !status.Valid(newStatus) {
		return nil, fmt.Errorf("unknown status %q", newStatus)
	}
	var task taskDB.CycleTask
	if err := s.DB.First(&task, taskID).Error; err != nil {
		return nil, err
	}
	var group taskDB.CycleTaskGroup
	if err := s.DB.First(&group, task.CycleTaskGroupID).Error; err != nil {
		return nil, err
	}

	mu := s.cycleLock(group.CycleID)
	mu.Lock()
	defer mu.Unlock()

	change := events.StatusChangeEvent{
		CycleTaskID: task.ID,
		OldStatus:   task.Status,
		NewStatus:   newStatus,
		ActorID:     actorID,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		applyTaskStatus(&task, newStatus, actorID, s.Now())
		if err := tx.Save(&task).Error; err != nil {
			return err
		}
		// tasks are leaves, so the downward cascade is a no-op here and the
		// chain continues with the upward aggregation
		return s.refreshUpward(tx, group.CycleID, group.ID)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("StatusService: cycle task %d moved %s -> %s", change.CycleTaskID, change.OldStatus, change.NewStatus)
	return &task, nil
}

// UpdateGroupStatus handles an explicit status edit on a cycle task group:
// the new status cascades onto the group's tasks first, then the group and
// cycle re-aggregate from the bottom.
func (s *StatusService) UpdateGroupStatus(groupID uint, newStatus status.Status, actorID uint) (*taskDB.CycleTaskGroup, error) {
	if !status.Valid(newStatus) {
		return nil, fmt.Errorf("unknown status %q", newStatus)
	}
	var group taskDB.CycleTaskGroup
	if err := s.DB.First(&group, groupID).Error; err != nil {
		return nil, err
	}

	mu := s.cycleLock(group.CycleID)
	mu.Lock()
	defer mu.Unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		group.Status = newStatus
		if err := tx.Save(&group).Error; err != nil {
			return err
		}
		if err := s.cascadeToTasks(tx, group.ID, newStatus, actorID); err != nil {
			return err
		}
		return s.refreshUpward(tx, group.CycleID, group.ID)
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdateCycleStatus handles an explicit status edit on a whole cycle,
// cascading through its groups into their tasks before re-aggregating.
func (s *StatusService) UpdateCycleStatus(cycleID uint, newStatus status.Status, actorID uint) (*taskDB.Cycle, error) {
	if !status.Valid(newStatus) {
		return nil, fmt.Errorf("unknown status %q", newStatus)
	}
	var cycle taskDB.Cycle
	if err := s.DB.First(&cycle, cycleID).Error; err != nil {
		return nil, err
	}

	mu := s.cycleLock(cycle.ID)
	mu.Lock()
	defer mu.Unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cycle.Status = newStatus
		if err := tx.Save(&cycle).Error; err != nil {
			return err
		}
		var groups []taskDB.CycleTaskGroup
		if err := tx.Where("cycle_id = ?", cycle.ID).Find(&groups).Error; err != nil {
			return err
		}
		for i := range groups {
			group := &groups[i]
			if group.Status != newStatus && status.ShouldCascade(newStatus, group.Status) {
				group.Status = newStatus
				if err := tx.Save(group).Error; err != nil {
					return err
				}
				if err := s.cascadeToTasks(tx, group.ID, newStatus, actorID); err != nil {
					return err
				}
			}
			if err := s.aggregateGroup(tx, group, cycle.IsVerificationNeeded); err != nil {
				return err
			}
		}
		if err := s.aggregateCycle(tx, &cycle); err != nil {
			return err
		}
		return s.deriveWorkflowStatus(tx, cycle.WorkflowID)
	})
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// cascadeToTasks forces a parent's new status onto the tasks below it,
// per the rank/Declined cascade rules.
func (s *StatusService) cascadeToTasks(tx *gorm.DB, groupID uint, newStatus status.Status, actorID uint) error {
	var tasks []taskDB.CycleTask
	if err := tx.Where("cycle_task_group_id = ?", groupID).Find(&tasks).Error; err != nil {
		return err
	}
	for i := range tasks {
		task := &tasks[i]
		if task.Status == newStatus || !status.ShouldCascade(newStatus, task.Status) {
			continue
		}
		applyTaskStatus(task, newStatus, actorID, s.Now())
		if err := tx.Save(task).Error; err != nil {
			return err
		}
	}
	return nil
}

// refreshUpward re-aggregates the chain task -> group -> cycle -> workflow
// starting from the given group.
func (s *StatusService) refreshUpward(tx *gorm.DB, cycleID, groupID uint) error {
	var cycle taskDB.Cycle
	if err := tx.First(&cycle, cycleID).Error; err != nil {
		return err
	}
	var group taskDB.CycleTaskGroup
	if err := tx.First(&group, groupID).Error; err != nil {
		return err
	}
	if err := s.aggregateGroup(tx, &group, cycle.IsVerificationNeeded); err != nil {
		return err
	}
	if err := s.aggregateCycle(tx, &cycle); err != nil {
		return err
	}
	return s.deriveWorkflowStatus(tx, cycle.WorkflowID)
}

func (s *StatusService) aggregateGroup(tx *gorm.DB, group *taskDB.CycleTaskGroup, verificationNeeded bool) error {
	var tasks []taskDB.CycleTask
	if err := tx.Where("cycle_task_group_id = ?", group.ID).Find(&tasks).Error; err != nil {
		return err
	}
	statuses := make([]status.Status, 0, len(tasks))
	children := make([]status.Child, 0, len(tasks))
	for _, t := range tasks {
		statuses = append(statuses, t.Status)
		children = append(children, status.Child{Status: t.Status, StartDate: t.StartDate, EndDate: t.EndDate})
	}
	group.Status = status.Reduce(statuses)
	span := status.Span(children, verificationNeeded)
	group.StartDate = span.StartDate
	group.EndDate = span.EndDate
	group.NextDueDate = span.NextDueDate
	return tx.Save(group).Error
}

func (s *StatusService) aggregateCycle(tx *gorm.DB, cycle *taskDB.Cycle) error {
	var groups []taskDB.CycleTaskGroup
	if err := tx.Where("cycle_id = ?", cycle.ID).Find(&groups).Error; err != nil {
		return err
	}
	statuses := make([]status.Status, 0, len(groups))
	children := make([]status.Child, 0, len(groups))
	for _, g := range groups {
		statuses = append(statuses, g.Status)
		children = append(children, status.Child{Status: g.Status, StartDate: g.StartDate, EndDate: g.EndDate})
	}
	cycle.Status = status.Reduce(statuses)
	span := status.Span(children, cycle.IsVerificationNeeded)
	cycle.StartDate = span.StartDate
	cycle.EndDate = span.EndDate
	cycle.NextDueDate = span.NextDueDate

	var openTasks int64
	err := tx.Model(&taskDB.CycleTask{}).
		Joins("JOIN cycle_task_groups ON cycle_task_groups.id = cycle_tasks.cycle_task_group_id").
		Where("cycle_task_groups.cycle_id = ?", cycle.ID).
		Where("cycle_tasks.status NOT IN ?", doneStatuses(cycle.IsVerificationNeeded)).
		Count(&openTasks).Error
	if err != nil {
		return err
	}
	cycle.IsCurrent = openTasks > 0
	return tx.Save(cycle).Error
}

func doneStatuses(verificationNeeded bool) []status.Status {
	if verificationNeeded {
		return []status.Status{status.StatusVerified, status.StatusDeprecated}
	}
	return []status.Status{status.StatusFinished, status.StatusVerified, status.StatusDeprecated}
}

// deriveWorkflowStatus flips a workflow between Active and Inactive based on
// whether it still has a current cycle. Draft workflows are never auto-changed.
func (s *StatusService) deriveWorkflowStatus(tx *gorm.DB, workflowID uint) error {
	var workflow taskDB.Workflow
	if err := tx.First(&workflow, workflowID).Error; err != nil {
		return err
	}
	if workflow.Status == taskDB.WorkflowDraft {
		return nil
	}
	var current int64
	if err := tx.Model(&taskDB.Cycle{}).
		Where("workflow_id = ? AND is_current = ?", workflowID, true).
		Count(&current).Error; err != nil {
		return err
	}
	newStatus := taskDB.WorkflowInactive
	if current > 0 {
		newStatus = taskDB.WorkflowActive
	}
	if workflow.Status == newStatus {
		return nil
	}
	return tx.Model(&workflow).Update("status", newStatus).Error
}
