package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

var tagColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TagService manages project tags and their attachment to tasks.
type TagService struct {
	Deps
}

func NewTagService(deps Deps) *TagService {
	return &TagService{Deps: deps}
}

// TagInput carries the fields of a tag to create or update.
type TagInput struct {
	ProjectID uint64
	ActorID   uint64
	Name      *string
	Color     *string
}

func (s *TagService) ListTags(ctx context.Context, actorID, projectID uint64) ([]models.Tag, error) {
	if _, err := s.authorizeProject(ctx, permissions.ViewProject, actorID, projectID); err != nil {
		return nil, err
	}
	tags, err := s.Repos.Tags.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *TagService) CreateTag(ctx context.Context, input TagInput) (*models.Tag, error) {
	if _, err := s.authorizeProject(ctx, permissions.ManageTags, input.ActorID, input.ProjectID); err != nil {
		return nil, err
	}

	tag := &models.Tag{ProjectID: input.ProjectID, Color: models.DefaultTagColor}
	if input.Name == nil {
		return nil, ErrTagNameRequired
	}
	if err := applyTagInput(tag, input); err != nil {
		return nil, err
	}

	err := s.Runner.Run(ctx, func(tx *gorm.DB, _ *outbox.Box) error {
		repos := s.Repos.WithTx(tx)
		if err := ensureTagNameFree(ctx, repos, tag); err != nil {
			return err
		}
		if err := repos.Tags.Create(ctx, tag); err != nil {
			return fmt.Errorf("failed to create tag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TagService) UpdateTag(ctx context.Context, tagID uint64, input TagInput) (*models.Tag, error) {
	tag, err := s.Repos.Tags.FindByID(ctx, tagID)
	if err != nil {
		return nil, notFound(err, ErrTagNotFound, "find tag")
	}
	if tag.ProjectID != input.ProjectID {
		return nil, ErrTagNotFound
	}
	if _, err := s.authorizeProject(ctx, permissions.ManageTags, input.ActorID, tag.ProjectID); err != nil {
		return nil, err
	}
	if err := applyTagInput(tag, input); err != nil {
		return nil, err
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, _ *outbox.Box) error {
		repos := s.Repos.WithTx(tx)
		if input.Name != nil {
			if err := ensureTagNameFree(ctx, repos, tag); err != nil {
				return err
			}
		}
		if err := repos.Tags.Update(ctx, tag); err != nil {
			return fmt.Errorf("failed to update tag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TagService) DeleteTag(ctx context.Context, actorID, projectID, tagID uint64) error {
	tag, err := s.Repos.Tags.FindByID(ctx, tagID)
	if err != nil {
		return notFound(err, ErrTagNotFound, "find tag")
	}
	if tag.ProjectID != projectID {
		return ErrTagNotFound
	}
	if _, err := s.authorizeProject(ctx, permissions.ManageTags, actorID, tag.ProjectID); err != nil {
		return err
	}

	return s.Runner.Run(ctx, func(tx *gorm.DB, _ *outbox.Box) error {
		if err := s.Repos.Tags.WithTx(tx).Delete(ctx, tag.ID); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	})
}

// SetTaskTags replaces a task's tags. An empty list clears them.
func (s *TagService) SetTaskTags(ctx context.Context, actorID, taskID uint64, tagIDs []uint64) (*models.Task, error) {
	ids := dedupe(tagIDs)
	if len(ids) > constants.MaxTagsPerTask {
		return nil, ErrTooManyTags
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTask(ctx, permissions.SetTaskTags, actorID, task); err != nil {
		return nil, err
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		tags, err := repos.Tags.FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to find tags: %w", err)
		}
		if len(tags) != len(ids) {
			return ErrInvalidTags
		}
		for _, tag := range tags {
			if tag.ProjectID != task.ProjectID {
				return ErrInvalidTags
			}
		}

		if err := repos.Tasks.ReplaceTags(ctx, task, tags); err != nil {
			return fmt.Errorf("failed to set tags: %w", err)
		}
		scheduleTaskBroadcast(box, events.TaskTagsChanged, task.ID, actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, taskID, taskPreloads...)
}

func applyTagInput(tag *models.Tag, input TagInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ErrTagNameRequired
		}
		if len(name) > constants.MaxTagNameLength {
			return ErrTagNameTooLong
		}
		tag.Name = name
	}
	if input.Color != nil {
		if !tagColorPattern.MatchString(*input.Color) {
			return ErrInvalidTagColor
		}
		tag.Color = *input.Color
	}
	return nil
}

func ensureTagNameFree(ctx context.Context, repos repository.Repositories, tag *models.Tag) error {
	existing, err := repos.Tags.FindByName(ctx, tag.ProjectID, tag.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check tag name: %w", err)
	}
	if existing.ID != tag.ID {
		return ErrTagNameTaken
	}
	return nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
