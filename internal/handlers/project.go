package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// ProjectHandler serves projects and their memberships.
type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// ListProjects returns the projects the current user belongs to
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	projects, total, err := h.projects.ListProjects(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.Map(projects, dto.ToProjectDTO), params, total))
}

// CreateProject creates a project owned by the current user
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	type CreateProjectRequest struct {
		Name        string `json:"name" binding:"required,max=255"`
		Description string `json:"description"`
	}

	var req CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project))
}

// UpdateProject applies a partial update
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	type UpdateProjectRequest struct {
		Name        *string               `json:"name" binding:"omitempty,max=255"`
		Description *string               `json:"description"`
		Status      *models.ProjectStatus `json:"status"`
	}

	var req UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projects.UpdateProject(c.Request.Context(), services.UpdateProjectInput{
		ProjectID:   projectID,
		ActorID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project))
}

func (h *ProjectHandler) ArchiveProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	project, err := h.projects.ArchiveProject(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project))
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), userID, projectID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

func (h *ProjectHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	members, err := h.projects.ListMembers(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.Map(members, dto.ToMemberDTO)})
}

// AddMember adds an existing user to the project
func (h *ProjectHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	type AddMemberRequest struct {
		UserID uint64             `json:"user_id" binding:"required"`
		Role   models.ProjectRole `json:"role"`
	}

	var req AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.projects.AddMember(c.Request.Context(), services.AddMemberInput{
		ProjectID: projectID,
		ActorID:   userID,
		UserID:    req.UserID,
		Role:      req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"project_id": member.ProjectID,
		"user_id":    member.UserID,
		"role":       member.Role,
		"joined_at":  member.JoinedAt,
	})
}

func (h *ProjectHandler) UpdateMemberRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	type UpdateRoleRequest struct {
		Role models.ProjectRole `json:"role" binding:"required"`
	}

	var req UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.projects.UpdateMemberRole(c.Request.Context(), userID, projectID, memberID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": member.ProjectID,
		"user_id":    member.UserID,
		"role":       member.Role,
	})
}

func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	if err := h.projects.RemoveMember(c.Request.Context(), userID, projectID, memberID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

func (h *ProjectHandler) LeaveProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}

	if err := h.projects.LeaveProject(c.Request.Context(), userID, projectID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left project successfully"})
}
