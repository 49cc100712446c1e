package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/middleware"
)

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Auth     *AuthHandler
	Projects *ProjectHandler
	Tasks    *TaskHandler
	Comments *CommentHandler
	Tags     *TagHandler
	Socket   gin.HandlerFunc
}

// NewRouter builds the HTTP surface. Every /api route except signup,
// login and logout requires a session or a bearer token.
func NewRouter(store sessions.Store, tokens middleware.TokenParser, h Handlers, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "TaskFlow API is running",
		})
	})

	if h.Socket != nil {
		r.GET("/ws/projects/:project_id", h.Socket)
	}

	requireAuth := middleware.RequireAuth(tokens)

	api := r.Group("/api")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
			auth.POST("/token", requireAuth, h.Auth.IssueToken)
		}

		projects := api.Group("/projects")
		projects.Use(requireAuth)
		{
			projects.GET("", h.Projects.ListProjects)
			projects.POST("", h.Projects.CreateProject)
			projects.GET("/:project_id", h.Projects.GetProject)
			projects.PATCH("/:project_id", h.Projects.UpdateProject)
			projects.DELETE("/:project_id", h.Projects.DeleteProject)
			projects.POST("/:project_id/archive", h.Projects.ArchiveProject)
			projects.POST("/:project_id/leave", h.Projects.LeaveProject)

			projects.GET("/:project_id/members", h.Projects.ListMembers)
			projects.POST("/:project_id/members", h.Projects.AddMember)
			projects.PATCH("/:project_id/members/:user_id", h.Projects.UpdateMemberRole)
			projects.DELETE("/:project_id/members/:user_id", h.Projects.RemoveMember)

			projects.GET("/:project_id/tags", h.Tags.ListTags)
			projects.POST("/:project_id/tags", h.Tags.CreateTag)
			projects.PATCH("/:project_id/tags/:tag_id", h.Tags.UpdateTag)
			projects.DELETE("/:project_id/tags/:tag_id", h.Tags.DeleteTag)

			tasks := projects.Group("/:project_id/tasks")
			{
				tasks.GET("", h.Tasks.ListTasks)
				tasks.POST("", h.Tasks.CreateTask)
				tasks.GET("/:task_id", h.Tasks.GetTask)
				tasks.PATCH("/:task_id", h.Tasks.UpdateTask)
				tasks.DELETE("/:task_id", h.Tasks.DeleteTask)
				tasks.POST("/:task_id/status", h.Tasks.ChangeStatus)
				tasks.POST("/:task_id/assign", h.Tasks.AssignTask)
				tasks.POST("/:task_id/reorder", h.Tasks.ReorderTask)
				tasks.POST("/:task_id/tags", h.Tasks.SetTags)

				tasks.GET("/:task_id/comments", h.Comments.ListComments)
				tasks.POST("/:task_id/comments", h.Comments.CreateComment)
				tasks.PATCH("/:task_id/comments/:comment_id", h.Comments.UpdateComment)
				tasks.DELETE("/:task_id/comments/:comment_id", h.Comments.DeleteComment)
			}
		}
	}

	return r
}
