package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

// ProjectService provides business logic for projects and their members.
type ProjectService struct {
	Deps
}

// NewProjectService creates a new ProjectService.
func NewProjectService(deps Deps) *ProjectService {
	return &ProjectService{Deps: deps}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	OwnerID     uint64
}

// UpdateProjectInput holds the fields that may change.
type UpdateProjectInput struct {
	ProjectID   uint64
	ActorID     uint64
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

// CreateProject creates a project and its owner membership together.
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}

	project := &models.Project{
		Name:        name,
		Description: input.Description,
		Status:      models.ProjectStatusActive,
		OwnerID:     input.OwnerID,
	}

	err := s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)
		if err := repos.Projects.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		owner := &models.ProjectMember{
			ProjectID: project.ID,
			UserID:    input.OwnerID,
			Role:      models.RoleOwner,
			JoinedAt:  time.Now(),
		}
		if err := repos.Projects.AddMember(ctx, owner); err != nil {
			return fmt.Errorf("failed to add owner to project: %w", err)
		}
		s.invalidateMembers(box, project.ID, input.OwnerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the projects the user belongs to.
func (s *ProjectService) ListProjects(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Project, int64, error) {
	projects, total, err := s.Repos.Projects.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// GetProject returns a project visible to the actor.
func (s *ProjectService) GetProject(ctx context.Context, actorID, projectID uint64) (*models.Project, error) {
	return s.authorizeProject(ctx, permissions.ViewProject, actorID, projectID)
}

// UpdateProject changes name, description or status.
func (s *ProjectService) UpdateProject(ctx context.Context, input UpdateProjectInput) (*models.Project, error) {
	if _, err := s.authorizeProject(ctx, permissions.UpdateProject, input.ActorID, input.ProjectID); err != nil {
		return nil, err
	}

	var project *models.Project
	err := s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		var err error
		project, err = repos.Projects.FindByID(ctx, input.ProjectID)
		if err != nil {
			return notFound(err, ErrProjectNotFound, "find project")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return ErrProjectNameRequired
			}
			project.Name = name
		}
		if input.Description != nil {
			project.Description = *input.Description
		}
		if input.Status != nil {
			if !validProjectStatus(*input.Status) {
				return ErrInvalidProjectState
			}
			project.Status = *input.Status
		}

		if err := repos.Projects.Update(ctx, project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		s.invalidateProject(box, project.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func validProjectStatus(status models.ProjectStatus) bool {
	switch status {
	case models.ProjectStatusActive, models.ProjectStatusArchived, models.ProjectStatusCompleted:
		return true
	}
	return false
}

// ArchiveProject sets the project status to archived.
func (s *ProjectService) ArchiveProject(ctx context.Context, actorID, projectID uint64) (*models.Project, error) {
	archived := models.ProjectStatusArchived
	return s.UpdateProject(ctx, UpdateProjectInput{ProjectID: projectID, ActorID: actorID, Status: &archived})
}

// DeleteProject deletes the project with everything in it.
func (s *ProjectService) DeleteProject(ctx context.Context, actorID, projectID uint64) error {
	if _, err := s.authorizeProject(ctx, permissions.DeleteProject, actorID, projectID); err != nil {
		return err
	}

	return s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		memberIDs, err := repos.Projects.ListMemberIDs(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}
		if err := repos.Projects.Delete(ctx, projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		s.invalidateMembers(box, projectID, memberIDs...)
		s.invalidateProject(box, projectID)
		return nil
	})
}

// ListMembers lists a project's members with their users.
func (s *ProjectService) ListMembers(ctx context.Context, actorID, projectID uint64) ([]models.ProjectMember, error) {
	if _, err := s.authorizeProject(ctx, permissions.ViewProject, actorID, projectID); err != nil {
		return nil, err
	}
	members, err := s.Repos.Projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMemberInput identifies who joins a project and as what.
type AddMemberInput struct {
	ProjectID uint64
	ActorID   uint64
	UserID    uint64
	Role      models.ProjectRole
}

// AddMember adds a user to the project and sends them an invitation.
func (s *ProjectService) AddMember(ctx context.Context, input AddMemberInput) (*models.ProjectMember, error) {
	if input.Role == "" {
		input.Role = models.RoleMember
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if input.Role == models.RoleOwner {
		return nil, ErrCannotGrantOwner
	}
	if _, err := s.authorizeProject(ctx, permissions.ManageMembers, input.ActorID, input.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Users.FindByID(ctx, input.UserID); err != nil {
		return nil, notFound(err, ErrUserNotFound, "find user")
	}

	member := &models.ProjectMember{
		ProjectID: input.ProjectID,
		UserID:    input.UserID,
		Role:      input.Role,
		JoinedAt:  time.Now(),
	}

	err := s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		_, err := repos.Projects.FindMember(ctx, input.ProjectID, input.UserID)
		if err == nil {
			return ErrAlreadyMember
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check membership: %w", err)
		}

		if err := repos.Projects.AddMember(ctx, member); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		s.invalidateMembers(box, input.ProjectID, input.UserID)
		box.Enqueue(jobs.TypeNotifyInvitation, jobs.Invitation{
			ProjectID: input.ProjectID,
			UserID:    input.UserID,
			InviterID: input.ActorID,
			Role:      input.Role,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateMemberRole changes a non-owner member's role.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, actorID, projectID, userID uint64, role models.ProjectRole) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == models.RoleOwner {
		return nil, ErrCannotGrantOwner
	}
	if _, err := s.authorizeProject(ctx, permissions.ManageMembers, actorID, projectID); err != nil {
		return nil, err
	}

	var member *models.ProjectMember
	err := s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		var err error
		member, err = repos.Projects.FindMember(ctx, projectID, userID)
		if err != nil {
			return notFound(err, ErrMemberNotFound, "find member")
		}
		if member.Role == models.RoleOwner {
			return ErrCannotChangeOwner
		}

		old := member.Role
		if old == role {
			return nil
		}
		if err := repos.Projects.UpdateMemberRole(ctx, projectID, userID, role); err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		member.Role = role

		s.invalidateMembers(box, projectID, userID)
		box.Enqueue(jobs.TypeNotifyRoleChanged, jobs.RoleChange{
			ProjectID: projectID,
			UserID:    userID,
			OldRole:   old,
			NewRole:   role,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a non-owner member.
func (s *ProjectService) RemoveMember(ctx context.Context, actorID, projectID, userID uint64) error {
	project, err := s.authorizeProject(ctx, permissions.ManageMembers, actorID, projectID)
	if err != nil {
		return err
	}
	return s.removeMember(ctx, project, userID, ErrCannotRemoveOwner, true)
}

// LeaveProject removes the actor from the project.
func (s *ProjectService) LeaveProject(ctx context.Context, actorID, projectID uint64) error {
	project, err := s.authorizeProject(ctx, permissions.LeaveProject, actorID, projectID)
	if err != nil {
		return err
	}
	return s.removeMember(ctx, project, actorID, ErrOwnerCannotLeave, false)
}

func (s *ProjectService) removeMember(ctx context.Context, project *models.Project, userID uint64, ownerErr error, notify bool) error {
	return s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		member, err := repos.Projects.FindMember(ctx, project.ID, userID)
		if err != nil {
			return notFound(err, ErrMemberNotFound, "find member")
		}
		if member.Role == models.RoleOwner {
			return ownerErr
		}
		if err := repos.Projects.RemoveMember(ctx, project.ID, userID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}

		s.invalidateMembers(box, project.ID, userID)
		if notify {
			box.Enqueue(jobs.TypeNotifyRemoved, jobs.Removal{
				ProjectID:   project.ID,
				ProjectName: project.Name,
				UserID:      userID,
			})
		}
		return nil
	})
}
