package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"gorm.io/gorm"

	taskDB "workflow-cycle-service/internal/workflow-manager/db"
	"workflow-cycle-service/internal/workflow-manager/scheduling"
	"workflow-cycle-service/internal/workflow-manager/services"
)

// WorkflowHandler covers workflow template authoring: workflows, task groups
// and task templates. Schedule-affecting mutations recompute the workflow's
// next cycle start date through the cycle service.
type WorkflowHandler struct {
	DB     *gorm.DB
	Cycles *services.CycleService
}

func NewWorkflowHandler(db *gorm.DB, cycles *services.CycleService) *WorkflowHandler {
	return &WorkflowHandler{DB: db, Cycles: cycles}
}

type CreateWorkflowRequest struct {
	Title                string `json:"title" validate:"required,gt=0"`
	Description          string `json:"description"`
	Unit                 string `json:"unit" validate:"required,gt=0"`
	RepeatEvery          *int   `json:"repeat_every"`
	IsVerificationNeeded bool   `json:"is_verification_needed"`
}

type UpdateWorkflowRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	RepeatEvery *int    `json:"repeat_every"`
}

type CreateTaskGroupRequest struct {
	Title       string `json:"title" validate:"required,gt=0"`
	Description string `json:"description"`
}

type CreateTaskTemplateRequest struct {
	Title              string `json:"title" validate:"required,gt=0"`
	Description        string `json:"description"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	RelativeStartMonth *int   `json:"relative_start_month"`
	RelativeStartDay   *int   `json:"relative_start_day"`
	RelativeEndMonth   *int   `json:"relative_end_month"`
	RelativeEndDay     *int   `json:"relative_end_day"`
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	d = scheduling.DateOnly(d)
	return &d, nil
}

func parseIDParam(c *app.RequestContext) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}

func (h *WorkflowHandler) CreateWorkflow(ctx context.Context, c *app.RequestContext) {
	var req CreateWorkflowRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	workflow := taskDB.Workflow{
		Title:                req.Title,
		Description:          req.Description,
		Unit:                 scheduling.Unit(req.Unit),
		RepeatEvery:          req.RepeatEvery,
		IsVerificationNeeded: req.IsVerificationNeeded,
		Status:               taskDB.WorkflowDraft,
	}
	if err := workflow.ValidateRecurrence(); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid recurrence configuration: " + err.Error()})
		return
	}
	if result := h.DB.Create(&workflow); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create workflow: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

func (h *WorkflowHandler) GetWorkflows(ctx context.Context, c *app.RequestContext) {
	var workflows []taskDB.Workflow
	query := h.DB.Model(&taskDB.Workflow{})
	if s := c.Query("status"); s != "" {
		query = query.Where("status = ?", s)
	}
	if result := query.Find(&workflows); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch workflows: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, workflows)
}

func (h *WorkflowHandler) GetWorkflowByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var workflow taskDB.Workflow
	if result := h.DB.Preload("TaskGroups.Tasks").First(&workflow, id); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Workflow not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to fetch workflow: " + result.Error.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *WorkflowHandler) UpdateWorkflow(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req UpdateWorkflowRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	var workflow taskDB.Workflow
	if result := h.DB.First(&workflow, id); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Workflow not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to find workflow: " + result.Error.Error()})
		}
		return
	}

	if req.Title != nil {
		workflow.Title = *req.Title
	}
	if req.Description != nil {
		workflow.Description = *req.Description
	}
	if req.RepeatEvery != nil {
		workflow.RepeatEvery = req.RepeatEvery
	}
	if req.Status != nil {
		newStatus := taskDB.WorkflowStatus(*req.Status)
		switch newStatus {
		case taskDB.WorkflowDraft, taskDB.WorkflowActive, taskDB.WorkflowInactive:
			workflow.Status = newStatus
		default:
			c.JSON(http.StatusBadRequest, utils.H{"error": "Unknown workflow status: " + *req.Status})
			return
		}
	}
	if err := workflow.ValidateRecurrence(); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid recurrence configuration: " + err.Error()})
		return
	}
	if result := h.DB.Save(&workflow); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to update workflow: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *WorkflowHandler) CreateTaskGroup(ctx context.Context, c *app.RequestContext) {
	workflowID, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req CreateTaskGroupRequest
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
	group := taskDB.TaskGroup{
		WorkflowID:  workflow.ID,
		Title:       req.Title,
		Description: req.Description,
	}
	if result := h.DB.Create(&group); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create task group: " + result.Error.Error()})
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *WorkflowHandler) CreateTaskTemplate(ctx context.Context, c *app.RequestContext) {
	groupID, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req CreateTaskTemplateRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	var group taskDB.TaskGroup
	if result := h.DB.First(&group, groupID); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Task group not found"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to find task group: " + result.Error.Error()})
		}
		return
	}
	var workflow taskDB.Workflow
	if result := h.DB.First(&workflow, group.WorkflowID); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to find workflow for task group: " + result.Error.Error()})
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
		return
	}

	template := taskDB.TaskTemplate{
		TaskGroupID:        group.ID,
		Title:              req.Title,
		Description:        req.Description,
		StartDate:          startDate,
		EndDate:            endDate,
		RelativeStartMonth: req.RelativeStartMonth,
		RelativeStartDay:   req.RelativeStartDay,
		RelativeEndMonth:   req.RelativeEndMonth,
		RelativeEndDay:     req.RelativeEndDay,
	}
	if err := scheduling.ValidateTaskSpec(workflow.Unit, template.Spec()); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid task schedule for " + string(workflow.Unit) + " workflow: " + err.Error()})
		return
	}
	if result := h.DB.Create(&template); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to create task template: " + result.Error.Error()})
		return
	}
	if err := h.Cycles.RecomputeNextCycleStartDate(&workflow); err != nil {
		log.Printf("Failed to recompute next cycle start date for workflow %d: %v", workflow.ID, err)
	}
	c.JSON(http.StatusCreated, template)
}

func (h *WorkflowHandler) DeleteTaskTemplate(ctx context.Context, c *app.RequestContext) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var template taskDB.TaskTemplate
	if result := h.DB.First(&template, id); result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "Task template not found to delete"})
		} else {
			c.JSON(http.StatusInternalServerError, utils.H{"error": "Error finding task template to delete: " + result.Error.Error()})
		}
		return
	}
	var group taskDB.TaskGroup
	if result := h.DB.First(&group, template.TaskGroupID); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to find task group: " + result.Error.Error()})
		return
	}
	if result := h.DB.Delete(&taskDB.TaskTemplate{}, id); result.Error != nil {
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to delete task template: " + result.Error.Error()})
		return
	}
	var workflow taskDB.Workflow
	if result := h.DB.First(&workflow, group.WorkflowID); result.Error == nil {
		if err := h.Cycles.RecomputeNextCycleStartDate(&workflow); err != nil {
			log.Printf("Failed to recompute next cycle start date for workflow %d: %v", workflow.ID, err)
		}
	}
	c.JSON(http.StatusOK, utils.H{"message": "Task template deleted successfully"})
}
