package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	taskDB "workflow-cycle-service/internal/workflow-manager/db"
	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/services"
	"workflow-cycle-service/internal/workflow-manager/status"
)

// CycleHandler covers the cycle lifecycle: manual cycle starts, cycle reads
// and the explicit status edits on cycles, groups and tasks.
type CycleHandler struct {
	DB       *gorm.DB
	Cycles   *services.CycleService
	Statuses *services.StatusService
}

func NewCycleHandler(db *gorm.DB, cycles *services.CycleService, statuses *services.StatusService) *CycleHandler {
	return &CycleHandler{DB: db, Cycles: cycles, Statuses: statuses}
}

type StartCycleRequest struct {
	ActorID uint `json:"actor_id"`
}

type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required,gt=0"`
	ActorID uint   `json:"actor_id"`
}

// StartCycle builds one cycle for a workflow on demand, outside the schedule.
func (h *CycleHandler) StartCycle(ctx context.Context, c *app.RequestContext) {
	workflowID, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req StartCycleRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	var workflow taskDB.Workflow
	if result := h.DB.First(&workflow, workflowID); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Workflow not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to find workflow: " + result.Error.Error()})
		}
		return
	}

	var cycle *taskDB.Cycle
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		built, buildErr := h.Cycles.BuildCycle(ctx, tx, &workflow, req.ActorID, nil)
		cycle = built
		return buildErr
	})
	if err != nil {
		var misconfigured *services.MisconfiguredWorkflowError
		var badRange *scheduling.InvalidDateRangeError
		switch {
		case errors.As(err, &misconfigured):
			c.JSON(http.StatusUnprocessableEntity, utils.H{"error": err.Error()})
		case errors.As(err, &badRange), errors.Is(err, scheduling.ErrNoTasks):
			c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to start cycle: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

func (h *CycleHandler) GetCycles(ctx context.Context, c *app.RequestContext) {
	var cycles []taskDB.Cycle
	query := h.DB.Model(&taskDB.Cycle{})
	if wid := c.Query("workflow_id"); wid != "" {
		query = query.Where("workflow_id = ?", wid)
	}
	if current := c.Query("is_current"); current != "" {
		query = query.Where("is_current = ?", current == "true")
	}
	if result := query.Find(&cycles); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch cycles: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, cycles)
}

func (h *CycleHandler) GetCycleByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var cycle taskDB.Cycle
	if result := h.DB.Preload("TaskGroups.Tasks").First(&cycle, id); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Cycle not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch cycle: " + result.Error.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, cycle)
}

func bindStatusUpdate(c *app.RequestContext) (status.Status, uint, bool) {
	var req UpdateStatusRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return "", 0, false
	}
	newStatus := status.Status(req.Status)
	if !status.Valid(newStatus) {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Unknown status: " + req.Status})
		return "", 0, false
	}
	return newStatus, req.ActorID, true
}

func (h *CycleHandler) UpdateTaskStatus(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	newStatus, actorID, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	task, err := h.Statuses.UpdateTaskStatus(id, newStatus, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.H{"error": "Cycle task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to update cycle task status: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *CycleHandler) UpdateGroupStatus(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	newStatus, actorID, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	group, err := h.Statuses.UpdateGroupStatus(id, newStatus, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.H{"error": "Cycle task group not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to update cycle task group status: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *CycleHandler) UpdateCycleStatus(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	newStatus, actorID, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	cycle, err := h.Statuses.UpdateCycleStatus(id, newStatus, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.H{"error": "Cycle not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to update cycle status: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, cycle)
}
