package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// TaskHandler serves tasks nested under a project.
type TaskHandler struct {
	tasks *services.TaskService
	tags  *services.TagService
}

func NewTaskHandler(tasks *services.TaskService, tags *services.TagService) *TaskHandler {
	return &TaskHandler{tasks: tasks, tags: tags}
}

// requireTask loads the task named in the path and checks it belongs to
// the project in the path.
func requireTask(c *gin.Context, tasks *services.TaskService) (uint64, *models.Task, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return 0, nil, false
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return 0, nil, false
	}
	taskID, ok := paramID(c, "task_id")
	if !ok {
		return 0, nil, false
	}

	task, err := tasks.GetTask(c.Request.Context(), userID, taskID)
	if err != nil {
		respondError(c, err)
		return 0, nil, false
	}
	if task.ProjectID != projectID {
		respondError(c, services.ErrTaskNotFound)
		return 0, nil, false
	}
	return userID, task, true
}

// ListTasks returns a project's tasks in board order.
// Optional filters: status, priority, assignee_id.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	input := services.ListTasksInput{
		ProjectID: projectID,
		ActorID:   userID,
		Page:      utils.GetPaginationParams(c),
	}
	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(v)
		input.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := models.TaskPriority(v)
		input.Priority = &priority
	}
	if v := c.Query("assignee_id"); v != "" {
		assigneeID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid assignee_id")
			return
		}
		input.AssigneeID = &assigneeID
	}

	tasks, total, err := h.tasks.ListTasks(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.Map(tasks, dto.ToTaskDTO), input.Page, total))
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	_, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask appends a task to the project
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Status      models.TaskStatus   `json:"status"`
		Priority    models.TaskPriority `json:"priority"`
		Deadline    *time.Time          `json:"deadline"`
		AssigneeID  *uint64             `json:"assignee_id"`
	}

	var req CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), services.CreateTaskInput{
		ProjectID:   projectID,
		ActorID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Deadline:    req.Deadline,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update to the task's plain fields
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Title         *string              `json:"title"`
		Description   *string              `json:"description"`
		Priority      *models.TaskPriority `json:"priority"`
		Deadline      *time.Time           `json:"deadline"`
		ClearDeadline bool                 `json:"clear_deadline"`
	}

	var req UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.tasks.UpdateTask(c.Request.Context(), services.UpdateTaskInput{
		TaskID:        task.ID,
		ActorID:       userID,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	if err := h.tasks.DeleteTask(c.Request.Context(), userID, task.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	type ChangeStatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	var req ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.tasks.ChangeStatus(c.Request.Context(), userID, task.ID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// AssignTask sets the assignee; a null assignee_id unassigns
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	type AssignTaskRequest struct {
		AssigneeID *uint64 `json:"assignee_id"`
	}

	var req AssignTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.tasks.AssignTask(c.Request.Context(), userID, task.ID, req.AssigneeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

func (h *TaskHandler) ReorderTask(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	type ReorderTaskRequest struct {
		Position *int `json:"position" binding:"required"`
	}

	var req ReorderTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.tasks.ReorderTask(c.Request.Context(), userID, task.ID, *req.Position)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// SetTags replaces the task's tags; an empty list clears them
func (h *TaskHandler) SetTags(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	type SetTagsRequest struct {
		TagIDs []uint64 `json:"tag_ids"`
	}

	var req SetTagsRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.tags.SetTaskTags(c.Request.Context(), userID, task.ID, req.TagIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}
