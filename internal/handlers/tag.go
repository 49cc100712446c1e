package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// TagHandler serves a project's tags.
type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

type tagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (h *TagHandler) ListTags(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	tags, err := h.tags.ListTags(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": dto.Map(tags, dto.ToTagDTO)})
}

func (h *TagHandler) CreateTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.tags.CreateTag(c.Request.Context(), services.TagInput{
		ProjectID: projectID,
		ActorID:   userID,
		Name:      req.Name,
		Color:     req.Color,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTagDTO(*tag))
}

func (h *TagHandler) UpdateTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tag_id")
	if !ok {
		return
	}

	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.tags.UpdateTag(c.Request.Context(), tagID, services.TagInput{
		ProjectID: projectID,
		ActorID:   userID,
		Name:      req.Name,
		Color:     req.Color,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTagDTO(*tag))
}

func (h *TagHandler) DeleteTag(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tag_id")
	if !ok {
		return
	}

	if err := h.tags.DeleteTag(c.Request.Context(), userID, projectID, tagID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}
