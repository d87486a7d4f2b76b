package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"workflow-cycle-service/internal/workflow-manager/db"
	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/status"
)

func seedWeeklyWorkflow(t *testing.T, gormDB *gorm.DB) db.Workflow {
	workflow := db.Workflow{Title: "Weekly digest", Unit: scheduling.UnitWeek, Status: db.WorkflowActive}
	assert.NoError(t, gormDB.Create(&workflow).Error)
	group := db.TaskGroup{WorkflowID: workflow.ID, Title: "Digest"}
	assert.NoError(t, gormDB.Create(&group).Error)
	one, five := 1, 5
	template := db.TaskTemplate{TaskGroupID: group.ID, Title: "Send digest",
		RelativeStartDay: &one, RelativeEndDay: &five}
	assert.NoError(t, gormDB.Create(&template).Error)
	return workflow
}

func TestStartCycleAPI(t *testing.T) {
	dbFilePath := uniqueDBPath("start_cycle")
	router, gormDB := setupTestAppWithRoutes(t, dbFilePath)
	defer teardownTestDBFromRouter(gormDB, t, dbFilePath)

	workflow := seedWeeklyWorkflow(t, gormDB)

	url := "/workflows/" + strconv.FormatUint(uint64(workflow.ID), 10) + "/cycles"
	w := postJSON(router, url, StartCycleRequest{ActorID: 3})
	resp := w.Result()
	assert.Equal(t, http.StatusCreated, resp.StatusCode())

	var cycle db.Cycle
	assert.NoError(t, json.Unmarshal(resp.Body(), &cycle))
	assert.NotZero(t, cycle.ID)
	assert.Equal(t, status.StatusAssigned, cycle.Status)
	assert.True(t, cycle.IsCurrent)
	assert.Equal(t, uint(3), cycle.CreatedByID)

	w = postJSON(router, "/workflows/99999/cycles", StartCycleRequest{})
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode())
}

func TestStartCycleAPI_MisconfiguredWorkflow(t *testing.T) {
	dbFilePath := uniqueDBPath("start_cycle_misconfigured")
	router, gormDB := setupTestAppWithRoutes(t, dbFilePath)
	defer teardownTestDBFromRouter(gormDB, t, dbFilePath)

	workflow := db.Workflow{Title: "No templates", Unit: scheduling.UnitMonth, Status: db.WorkflowActive}
	assert.NoError(t, gormDB.Create(&workflow).Error)

	url := "/workflows/" + strconv.FormatUint(uint64(workflow.ID), 10) + "/cycles"
	w := postJSON(router, url, StartCycleRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode())
}

func TestGetCyclesAPI_Filters(t *testing.T) {
	dbFilePath := uniqueDBPath("get_cycles")
	router, gormDB := setupTestAppWithRoutes(t, dbFilePath)
	defer teardownTestDBFromRouter(gormDB, t, dbFilePath)

	workflow := seedWeeklyWorkflow(t, gormDB)
	current := db.Cycle{WorkflowID: workflow.ID, Title: "Current", Status: status.StatusAssigned, IsCurrent: true}
	historical := db.Cycle{WorkflowID: workflow.ID, Title: "Old", Status: status.StatusVerified, IsCurrent: false}
	assert.NoError(t, gormDB.Create(&current).Error)
	assert.NoError(t, gormDB.Create(&historical).Error)

	w := ut.PerformRequest(router, "GET",
		"/cycles?workflow_id="+strconv.FormatUint(uint64(workflow.ID), 10)+"&is_current=true", nil)
	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	var cycles []db.Cycle
	assert.NoError(t, json.Unmarshal(resp.Body(), &cycles))
	assert.Len(t, cycles, 1)
	assert.Equal(t, "Current", cycles[0].Title)
}

func TestUpdateCycleTaskStatusAPI(t *testing.T) {
	dbFilePath := uniqueDBPath("task_status")
	router, gormDB := setupTestAppWithRoutes(t, dbFilePath)
	defer teardownTestDBFromRouter(gormDB, t, dbFilePath)

	workflow := seedWeeklyWorkflow(t, gormDB)
	cycle := db.Cycle{WorkflowID: workflow.ID, Title: "Cycle", Status: status.StatusAssigned, IsCurrent: true}
	assert.NoError(t, gormDB.Create(&cycle).Error)
	cycleGroup := db.CycleTaskGroup{CycleID: cycle.ID, Title: "Group", Status: status.StatusAssigned}
	assert.NoError(t, gormDB.Create(&cycleGroup).Error)
	task := db.CycleTask{CycleTaskGroupID: cycleGroup.ID, Title: "Task", Status: status.StatusAssigned}
	assert.NoError(t, gormDB.Create(&task).Error)

	url := "/cycle-tasks/" + strconv.FormatUint(uint64(task.ID), 10) + "/status"
	w := putJSON(router, url, UpdateStatusRequest{Status: "Finished", ActorID: 4})
	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	var updated db.CycleTask
	assert.NoError(t, json.Unmarshal(resp.Body(), &updated))
	assert.Equal(t, status.StatusFinished, updated.Status)
	assert.NotNil(t, updated.FinishedDate)

	// the lone finished task closes the tree above it
	var updatedCycle db.Cycle
	assert.NoError(t, gormDB.First(&updatedCycle, cycle.ID).Error)
	assert.Equal(t, status.StatusFinished, updatedCycle.Status)
	assert.False(t, updatedCycle.IsCurrent)

	w = putJSON(router, url, UpdateStatusRequest{Status: "Closed"})
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())

	w = putJSON(router, "/cycle-tasks/99999/status", UpdateStatusRequest{Status: "Finished"})
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode())
}

func TestUpdateCycleStatusAPI_Declined(t *testing.T) {
	dbFilePath := uniqueDBPath("cycle_status")
	router, gormDB := setupTestAppWithRoutes(t, dbFilePath)
	defer teardownTestDBFromRouter(gormDB, t, dbFilePath)

	workflow := seedWeeklyWorkflow(t, gormDB)
	cycle := db.Cycle{WorkflowID: workflow.ID, Title: "Cycle", Status: status.StatusFinished, IsCurrent: false}
	assert.NoError(t, gormDB.Create(&cycle).Error)
	cycleGroup := db.CycleTaskGroup{CycleID: cycle.ID, Title: "Group", Status: status.StatusFinished}
	assert.NoError(t, gormDB.Create(&cycleGroup).Error)
	task := db.CycleTask{CycleTaskGroupID: cycleGroup.ID, Title: "Task", Status: status.StatusFinished}
	assert.NoError(t, gormDB.Create(&task).Error)

	url := "/cycles/" + strconv.FormatUint(uint64(cycle.ID), 10) + "/status"
	w := putJSON(router, url, UpdateStatusRequest{Status: "Declined"})
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())

	var updatedTask db.CycleTask
	assert.NoError(t, gormDB.First(&updatedTask, task.ID).Error)
	assert.Equal(t, status.StatusDeclined, updatedTask.Status)

	var updatedCycle db.Cycle
	assert.NoError(t, gormDB.First(&updatedCycle, cycle.ID).Error)
	assert.Equal(t, status.StatusInProgress, updatedCycle.Status)
	assert.True(t, updatedCycle.IsCurrent)
}
