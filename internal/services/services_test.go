package services

import (
	"context"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskflow-api/internal/cache"
	"github.com/yukikurage/taskflow-api/internal/membership"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"gorm.io/gorm"
)

// serviceSuite wires real services over an in-memory database, a memory
// cache and a queue that records what was scheduled.
type serviceSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	queue *testutil.RecordingQueue
	store *cache.MemoryStore
	deps  Deps

	owner   *models.User
	project *models.Project
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.queue = &testutil.RecordingQueue{}
	s.store = cache.NewMemoryStore()

	log := testutil.Logger()
	repos := repository.NewRepositories(s.db)
	authority := membership.NewAuthority(cache.NewReadThrough(s.store, log), repos.Projects, log)
	s.deps = Deps{
		Runner:     outbox.NewRunner(s.db, s.queue, log),
		Repos:      repos,
		Members:    authority,
		Authorizer: permissions.NewAuthorizer(authority),
	}

	s.owner = testutil.CreateUser(s.T(), s.db, "owner@example.com")
	s.project = testutil.CreateProject(s.T(), s.db, "Apollo", s.owner)
}

// member creates a user with role in the suite's project.
func (s *serviceSuite) member(email string, role models.ProjectRole) *models.User {
	user := testutil.CreateUser(s.T(), s.db, email)
	testutil.AddMember(s.T(), s.db, s.project, user, role)
	return user
}

func (s *serviceSuite) outsider(email string) *models.User {
	return testutil.CreateUser(s.T(), s.db, email)
}

func (s *serviceSuite) reloadTask(id uint64) models.Task {
	var task models.Task
	s.Require().NoError(s.db.First(&task, id).Error)
	return task
}

// decoded returns the payloads of every recorded job of jobType.
func decoded[T any](s *serviceSuite, jobType string) []T {
	var out []T
	for _, job := range s.queue.OfType(jobType) {
		var v T
		s.Require().NoError(job.Decode(&v))
		out = append(out, v)
	}
	return out
}
