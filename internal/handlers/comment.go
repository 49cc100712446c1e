package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// CommentHandler serves the comments of a task.
type CommentHandler struct {
	tasks    *services.TaskService
	comments *services.CommentService
}

func NewCommentHandler(tasks *services.TaskService, comments *services.CommentService) *CommentHandler {
	return &CommentHandler{tasks: tasks, comments: comments}
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *CommentHandler) ListComments(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	comments, total, err := h.comments.ListComments(c.Request.Context(), userID, task.ID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.Map(comments, dto.ToCommentDTO), params, total))
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, task, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}

	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.CreateComment(c.Request.Context(), userID, task.ID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCommentDTO(*comment))
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	userID, _, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "comment_id")
	if !ok {
		return
	}

	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.UpdateComment(c.Request.Context(), userID, commentID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCommentDTO(*comment))
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, _, ok := requireTask(c, h.tasks)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "comment_id")
	if !ok {
		return
	}

	if err := h.comments.DeleteComment(c.Request.Context(), userID, commentID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
