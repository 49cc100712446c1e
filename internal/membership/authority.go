// Package membership answers "is this user in this project, and as what"
// through a read-through cache over the membership table.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/taskflow-api/internal/cache"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

func roleKey(projectID, userID uint64) string {
	return fmt.Sprintf("projects:member_role:%d:%d", projectID, userID)
}

func existsKey(projectID, userID uint64) string {
	return fmt.Sprintf("projects:exists_member:%d:%d", projectID, userID)
}

func adminKey(projectID, userID uint64) string {
	return fmt.Sprintf("projects:is_admin_or_owner:%d:%d", projectID, userID)
}

// ProjectKey is the cache key of a project row.
func ProjectKey(projectID uint64) string {
	return fmt.Sprintf("projects:by_id:%d", projectID)
}

// Authority resolves membership questions. Cache failures degrade to store
// reads; only store failures are returned.
type Authority struct {
	cache    *cache.ReadThrough
	projects repository.ProjectRepository
	log      *slog.Logger
}

func NewAuthority(rt *cache.ReadThrough, projects repository.ProjectRepository, log *slog.Logger) *Authority {
	return &Authority{cache: rt, projects: projects, log: log}
}

func (a *Authority) loadRole(projectID, userID uint64) cache.Loader[models.ProjectRole] {
	return func(ctx context.Context) (models.ProjectRole, bool, error) {
		member, err := a.projects.FindMember(ctx, projectID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to find member: %w", err)
		}
		return member.Role, true, nil
	}
}

// Role returns the user's role and whether they are a member at all.
func (a *Authority) Role(ctx context.Context, projectID, userID uint64) (models.ProjectRole, bool, error) {
	return cache.Fetch(ctx, a.cache, roleKey(projectID, userID), constants.MembershipCacheTTL, a.loadRole(projectID, userID))
}

// IsMember reports whether the user holds any role in the project.
func (a *Authority) IsMember(ctx context.Context, projectID, userID uint64) (bool, error) {
	isMember, _, err := cache.Fetch(ctx, a.cache, existsKey(projectID, userID), constants.MembershipCacheTTL,
		func(ctx context.Context) (bool, bool, error) {
			_, found, err := a.loadRole(projectID, userID)(ctx)
			if err != nil || !found {
				return false, false, err
			}
			return true, true, nil
		})
	return isMember, err
}

// IsAdminOrOwner reports whether the user administers the project.
func (a *Authority) IsAdminOrOwner(ctx context.Context, projectID, userID uint64) (bool, error) {
	ok, _, err := cache.Fetch(ctx, a.cache, adminKey(projectID, userID), constants.MembershipCacheTTL,
		func(ctx context.Context) (bool, bool, error) {
			role, found, err := a.loadRole(projectID, userID)(ctx)
			if err != nil || !found {
				return false, false, err
			}
			return role.IsAdminOrOwner(), true, nil
		})
	return ok, err
}

// Invalidate drops every cached answer for the given users in the project.
// Call it only after the membership change has committed.
func (a *Authority) Invalidate(ctx context.Context, projectID uint64, userIDs ...uint64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs)*3)
	for _, userID := range userIDs {
		keys = append(keys, roleKey(projectID, userID), existsKey(projectID, userID), adminKey(projectID, userID))
	}
	a.cache.Invalidate(ctx, keys...)
}

// Project returns the project row through the cache, or gorm.ErrRecordNotFound.
func (a *Authority) Project(ctx context.Context, projectID uint64) (*models.Project, error) {
	project, found, err := cache.Fetch(ctx, a.cache, ProjectKey(projectID), constants.ProjectCacheTTL,
		func(ctx context.Context) (models.Project, bool, error) {
			p, err := a.projects.FindByID(ctx, projectID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Project{}, false, nil
			}
			if err != nil {
				return models.Project{}, false, fmt.Errorf("failed to find project: %w", err)
			}
			return *p, true, nil
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gorm.ErrRecordNotFound
	}
	return &project, nil
}

// InvalidateProject drops the cached project row.
func (a *Authority) InvalidateProject(ctx context.Context, projectID uint64) {
	a.cache.Invalidate(ctx, ProjectKey(projectID))
}
