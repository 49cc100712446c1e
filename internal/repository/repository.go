package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

// Every repository can be rebound to a transaction with WithTx. The
// returned value shares nothing mutable with the original.

// UserRepository defines the interface for user data access
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email, case-insensitively
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProjectRepository defines the interface for project and membership data access
type ProjectRepository interface {
	WithTx(tx *gorm.DB) ProjectRepository

	// Create creates a new project
	Create(ctx context.Context, project *models.Project) error

	// FindByID finds a project by ID
	FindByID(ctx context.Context, id uint64) (*models.Project, error)

	// LockForUpdate reads the project row with SELECT ... FOR UPDATE.
	// Callers must be inside a transaction.
	LockForUpdate(ctx context.Context, id uint64) (*models.Project, error)

	// ListForUser lists the projects userID is a member of, newest first
	ListForUser(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Project, int64, error)

	// Update updates a project
	Update(ctx context.Context, project *models.Project) error

	// Delete deletes a project and everything it owns
	Delete(ctx context.Context, id uint64) error

	// AddMember adds a member to a project
	AddMember(ctx context.Context, member *models.ProjectMember) error

	// FindMember finds a specific project member
	FindMember(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error)

	// UpdateMemberRole changes a member's role
	UpdateMemberRole(ctx context.Context, projectID, userID uint64, role models.ProjectRole) error

	// RemoveMember removes a member from a project
	RemoveMember(ctx context.Context, projectID, userID uint64) error

	// ListMembers lists all members of a project with their users
	ListMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error)

	// ListMemberIDs lists the user IDs of all members of a project
	ListMemberIDs(ctx context.Context, projectID uint64) ([]uint64, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	WithTx(tx *gorm.DB) TaskRepository

	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// FindByIDForUpdate reads the task row with SELECT ... FOR UPDATE
	FindByIDForUpdate(ctx context.Context, id uint64) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// UpdateFields writes only the named columns, so concurrent writers of
	// other columns are not overwritten
	UpdateFields(ctx context.Context, id uint64, fields map[string]any) error

	// SetPosition writes only the position column
	SetPosition(ctx context.Context, id uint64, position uint) error

	// Delete deletes a task with its comments and tag links
	Delete(ctx context.Context, id uint64) error

	// MaxPosition returns the highest position in the project, or 0 when
	// the project has no tasks
	MaxPosition(ctx context.Context, projectID uint64) (uint, error)

	// ShiftPositions adds delta to the position of every task in the
	// project with from <= position <= to, except excludeID, in one UPDATE
	ShiftPositions(ctx context.Context, projectID uint64, from, to uint, delta int, excludeID uint64) error

	// ReplaceTags sets the task's tags to exactly tags
	ReplaceTags(ctx context.Context, task *models.Task, tags []models.Tag) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID  uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssigneeID *uint64
	Page       utils.PaginationParams
}

// TagRepository defines the interface for tag data access
type TagRepository interface {
	WithTx(tx *gorm.DB) TagRepository

	// Create creates a new tag
	Create(ctx context.Context, tag *models.Tag) error

	// FindByID finds a tag by ID
	FindByID(ctx context.Context, id uint64) (*models.Tag, error)

	// FindByIDs finds every tag whose ID is in ids
	FindByIDs(ctx context.Context, ids []uint64) ([]models.Tag, error)

	// FindByName finds a tag in a project by name, ignoring case
	FindByName(ctx context.Context, projectID uint64, name string) (*models.Tag, error)

	// ListByProject lists a project's tags by name
	ListByProject(ctx context.Context, projectID uint64) ([]models.Tag, error)

	// Update updates a tag
	Update(ctx context.Context, tag *models.Tag) error

	// Delete deletes a tag and detaches it from every task
	Delete(ctx context.Context, id uint64) error
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository

	// Create creates a new comment
	Create(ctx context.Context, comment *models.Comment) error

	// FindByID finds a comment by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Comment, error)

	// ListByTask lists a task's comments, oldest first
	ListByTask(ctx context.Context, taskID uint64, page utils.PaginationParams) ([]models.Comment, int64, error)

	// Update updates a comment
	Update(ctx context.Context, comment *models.Comment) error

	// Delete deletes a comment
	Delete(ctx context.Context, id uint64) error
}

// Repositories groups every repository over one connection or transaction.
type Repositories struct {
	Users    UserRepository
	Projects ProjectRepository
	Tasks    TaskRepository
	Tags     TagRepository
	Comments CommentRepository
}

// NewRepositories builds GORM repositories over db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Projects: NewProjectRepository(db),
		Tasks:    NewTaskRepository(db),
		Tags:     NewTagRepository(db),
		Comments: NewCommentRepository(db),
	}
}

// WithTx rebinds every repository to tx.
func (r Repositories) WithTx(tx *gorm.DB) Repositories {
	return Repositories{
		Users:    r.Users.WithTx(tx),
		Projects: r.Projects.WithTx(tx),
		Tasks:    r.Tasks.WithTx(tx),
		Tags:     r.Tags.WithTx(tx),
		Comments: r.Comments.WithTx(tx),
	}
}
