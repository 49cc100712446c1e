package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
)

// CreateUser inserts an active user with the given email.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		FirstName:    "Test",
		LastName:     email,
		PasswordHash: "hashedpassword",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

// CreateProject inserts a project owned by owner, with its owner membership.
func CreateProject(t *testing.T, db *gorm.DB, name string, owner *models.User) *models.Project {
	t.Helper()

	project := &models.Project{
		Name:    name,
		Status:  models.ProjectStatusActive,
		OwnerID: owner.ID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create project %s: %v", name, err)
	}
	AddMember(t, db, project, owner, models.RoleOwner)
	return project
}

// AddMember inserts a membership row.
func AddMember(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, role models.ProjectRole) {
	t.Helper()

	member := &models.ProjectMember{
		ProjectID: project.ID,
		UserID:    user.ID,
		Role:      role,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add member %d to project %d: %v", user.ID, project.ID, err)
	}
}

// CreateTask inserts a task at position in project.
func CreateTask(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, title string, position uint) *models.Task {
	t.Helper()

	task := &models.Task{
		ProjectID: project.ID,
		CreatorID: creator.ID,
		Title:     title,
		Status:    models.TaskStatusPending,
		Priority:  models.TaskPriorityMedium,
		Position:  position,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create task %s: %v", title, err)
	}
	return task
}

// CreateTasks inserts n tasks at positions 0..n-1 named T0..Tn-1.
func CreateTasks(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, n int) []*models.Task {
	t.Helper()

	tasks := make([]*models.Task, n)
	for i := range tasks {
		tasks[i] = CreateTask(t, db, project, creator, fmt.Sprintf("T%d", i), uint(i))
	}
	return tasks
}

// CreateTag inserts a tag in project.
func CreateTag(t *testing.T, db *gorm.DB, project *models.Project, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{ProjectID: project.ID, Name: name, Color: models.DefaultTagColor}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create tag %s: %v", name, err)
	}
	return tag
}

// Positions returns the position of each task id, read fresh from db.
func Positions(t *testing.T, db *gorm.DB, projectID uint64) map[uint64]uint {
	t.Helper()

	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		t.Fatalf("failed to load positions: %v", err)
	}
	out := make(map[uint64]uint, len(tasks))
	for _, task := range tasks {
		out[task.ID] = task.Position
	}
	return out
}
