package db

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/status"
)

func setupTestDB(t *testing.T) *gorm.DB {
	testDBFile := "test_gorm.db"
	_ = os.Remove(testDBFile)

	gormDB, err := gorm.Open(sqlite.Open(testDBFile), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = gormDB.AutoMigrate(&Workflow{}, &TaskGroup{}, &TaskTemplate{}, &Cycle{}, &CycleTaskGroup{}, &CycleTask{})
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return gormDB
}

func teardownTestDB(gormDB *gorm.DB, t *testing.T) {
	sqlDB, err := gormDB.DB()
	if err == nil {
		err = sqlDB.Close()
		if err != nil {
			t.Logf("Warning: could not close test DB: %v", err)
		}
	}
	err = os.Remove("test_gorm.db")
	if err != nil && !os.IsNotExist(err) {
		t.Logf("Warning: could not remove test DB file: %v", err)
	}
}

func TestWorkflowCRUD(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	repeatEvery := 1
	workflow := Workflow{
		Title:       "Monthly compliance review",
		Description: "A test workflow",
		Unit:        scheduling.UnitMonth,
		RepeatEvery: &repeatEvery,
		Status:      WorkflowDraft,
	}
	result := gormDB.Create(&workflow)
	assert.NoError(t, result.Error)
	assert.NotZero(t, workflow.ID)

	var fetched Workflow
	result = gormDB.First(&fetched, workflow.ID)
	assert.NoError(t, result.Error)
	assert.Equal(t, workflow.Title, fetched.Title)
	assert.Equal(t, scheduling.UnitMonth, fetched.Unit)

	fetched.Status = WorkflowActive
	result = gormDB.Save(&fetched)
	assert.NoError(t, result.Error)

	var updated Workflow
	gormDB.First(&updated, fetched.ID)
	assert.Equal(t, WorkflowActive, updated.Status)

	result = gormDB.Delete(&updated)
	assert.NoError(t, result.Error)

	var deleted Workflow
	result = gormDB.First(&deleted, workflow.ID)
	assert.Error(t, result.Error)
	assert.Equal(t, gorm.ErrRecordNotFound, result.Error)
}

func TestWorkflowPreloadsTaskGroupsAndTemplates(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	workflow := Workflow{Title: "Preload test", Unit: scheduling.UnitMonth, Status: WorkflowDraft}
	assert.NoError(t, gormDB.Create(&workflow).Error)

	group := TaskGroup{WorkflowID: workflow.ID, Title: "Group A"}
	assert.NoError(t, gormDB.Create(&group).Error)

	startDay, endDay := 15, 20
	template := TaskTemplate{
		TaskGroupID:      group.ID,
		Title:            "Collect evidence",
		RelativeStartDay: &startDay,
		RelativeEndDay:   &endDay,
	}
	assert.NoError(t, gormDB.Create(&template).Error)

	var fetched Workflow
	assert.NoError(t, gormDB.Preload("TaskGroups.Tasks").First(&fetched, workflow.ID).Error)
	assert.Len(t, fetched.TaskGroups, 1)
	assert.Len(t, fetched.TaskGroups[0].Tasks, 1)
	assert.Equal(t, "Collect evidence", fetched.TaskGroups[0].Tasks[0].Title)

	spec := fetched.TaskGroups[0].Tasks[0].Spec()
	assert.Equal(t, 15, *spec.RelativeStartDay)
	assert.Equal(t, 20, *spec.RelativeEndDay)
	assert.Nil(t, spec.RelativeStartMonth)
}

func TestCycleTreeCRUD(t *testing.T) {
	gormDB := setupTestDB(t)
	defer teardownTestDB(gormDB, t)

	workflow := Workflow{Title: "Cycle tree test", Unit: scheduling.UnitWeek, Status: WorkflowActive}
	assert.NoError(t, gormDB.Create(&workflow).Error)

	start := time.Date(2015, time.June, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2015, time.June, 12, 0, 0, 0, 0, time.UTC)
	cycle := Cycle{
		WorkflowID: workflow.ID,
		Title:      "Cycle tree test 2015-06-08",
		Status:     status.StatusAssigned,
		IsCurrent:  true,
		StartDate:  &start,
		EndDate:    &end,
	}
	assert.NoError(t, gormDB.Create(&cycle).Error)

	cycleGroup := CycleTaskGroup{CycleID: cycle.ID, Title: "Group A", Status: status.StatusAssigned}
	assert.NoError(t, gormDB.Create(&cycleGroup).Error)

	task := CycleTask{
		CycleTaskGroupID: cycleGroup.ID,
		Title:            "Weekly report",
		Status:           status.StatusAssigned,
		StartDate:        &start,
		EndDate:          &end,
	}
	assert.NoError(t, gormDB.Create(&task).Error)

	var fetched Cycle
	assert.NoError(t, gormDB.Preload("TaskGroups.Tasks").First(&fetched, cycle.ID).Error)
	assert.True(t, fetched.IsCurrent)
	assert.Len(t, fetched.TaskGroups, 1)
	assert.Len(t, fetched.TaskGroups[0].Tasks, 1)
	assert.Equal(t, status.StatusAssigned, fetched.TaskGroups[0].Tasks[0].Status)
}

func TestValidateRecurrence(t *testing.T) {
	one := 1
	zero := 0

	assert.NoError(t, (&Workflow{Unit: scheduling.UnitMonth, RepeatEvery: &one}).ValidateRecurrence())
	assert.NoError(t, (&Workflow{Unit: scheduling.UnitWeek}).ValidateRecurrence())
	assert.NoError(t, (&Workflow{Unit: scheduling.UnitOneTime}).ValidateRecurrence())

	assert.Error(t, (&Workflow{Unit: scheduling.Unit("fortnight")}).ValidateRecurrence())
	assert.Error(t, (&Workflow{Unit: scheduling.UnitOneTime, RepeatEvery: &one}).ValidateRecurrence())
	assert.Error(t, (&Workflow{Unit: scheduling.UnitMonth, RepeatEvery: &zero}).ValidateRecurrence())
}
