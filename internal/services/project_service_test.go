package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskflow-api/internal/cache"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

type ProjectServiceTestSuite struct {
	serviceSuite
	service *ProjectService
}

func (suite *ProjectServiceTestSuite) SetupTest() {
	suite.serviceSuite.SetupTest()
	suite.service = NewProjectService(suite.deps)
}

func (suite *ProjectServiceTestSuite) TestCreateProject_AddsOwner() {
	user := suite.outsider("founder@example.com")

	// A cached "not a member" answer must not outlive the commit.
	member, err := suite.deps.Members.IsMember(suite.ctx, 2, user.ID)
	suite.Require().NoError(err)
	suite.False(member)

	project, err := suite.service.CreateProject(suite.ctx, CreateProjectInput{Name: "  Gemini ", OwnerID: user.ID})
	suite.Require().NoError(err)
	suite.Equal(uint64(2), project.ID)
	suite.Equal("Gemini", project.Name)
	suite.Equal(models.ProjectStatusActive, project.Status)

	role, found, err := suite.deps.Members.Role(suite.ctx, project.ID, user.ID)
	suite.Require().NoError(err)
	suite.True(found)
	suite.Equal(models.RoleOwner, role)

	_, err = suite.service.CreateProject(suite.ctx, CreateProjectInput{Name: " ", OwnerID: user.ID})
	suite.ErrorIs(err, ErrProjectNameRequired)
}

func (suite *ProjectServiceTestSuite) TestListProjects() {
	dev := suite.member("dev@example.com", models.RoleMember)
	testutil.CreateProject(suite.T(), suite.db, "Other", suite.outsider("x@example.com"))

	projects, total, err := suite.service.ListProjects(suite.ctx, dev.ID, utils.PaginationParams{Page: 1, Limit: 20})
	suite.Require().NoError(err)
	suite.Equal(int64(1), total)
	suite.Equal("Apollo", projects[0].Name)
}

func (suite *ProjectServiceTestSuite) TestGetProject_HiddenFromOutsiders() {
	outsider := suite.outsider("out@example.com")

	_, err := suite.service.GetProject(suite.ctx, outsider.ID, suite.project.ID)
	suite.ErrorIs(err, ErrProjectNotFound)

	_, err = suite.service.GetProject(suite.ctx, suite.owner.ID, 404)
	suite.ErrorIs(err, ErrProjectNotFound)
}

func (suite *ProjectServiceTestSuite) TestUpdateProject_RefreshesCachedProject() {
	// Warm the project cache.
	_, err := suite.service.GetProject(suite.ctx, suite.owner.ID, suite.project.ID)
	suite.Require().NoError(err)

	name := "Apollo 11"
	_, err = suite.service.UpdateProject(suite.ctx, UpdateProjectInput{ProjectID: suite.project.ID, ActorID: suite.owner.ID, Name: &name})
	suite.Require().NoError(err)

	project, err := suite.service.GetProject(suite.ctx, suite.owner.ID, suite.project.ID)
	suite.Require().NoError(err)
	suite.Equal("Apollo 11", project.Name)

	bad := models.ProjectStatus("paused")
	_, err = suite.service.UpdateProject(suite.ctx, UpdateProjectInput{ProjectID: suite.project.ID, ActorID: suite.owner.ID, Status: &bad})
	suite.ErrorIs(err, ErrInvalidProjectState)
}

func (suite *ProjectServiceTestSuite) TestArchiveProject() {
	dev := suite.member("dev@example.com", models.RoleMember)
	admin := suite.member("admin@example.com", models.RoleAdmin)

	_, err := suite.service.ArchiveProject(suite.ctx, dev.ID, suite.project.ID)
	suite.ErrorIs(err, apierrors.ErrPermissionDenied)

	project, err := suite.service.ArchiveProject(suite.ctx, admin.ID, suite.project.ID)
	suite.Require().NoError(err)
	suite.Equal(models.ProjectStatusArchived, project.Status)
}

func (suite *ProjectServiceTestSuite) TestDeleteProject_OwnerOnlyAndInvalidates() {
	admin := suite.member("admin@example.com", models.RoleAdmin)
	testutil.CreateTask(suite.T(), suite.db, suite.project, suite.owner, "T", 1)

	err := suite.service.DeleteProject(suite.ctx, admin.ID, suite.project.ID)
	suite.ErrorIs(err, apierrors.ErrPermissionDenied)

	// Cache the admin's membership, then delete.
	member, err := suite.deps.Members.IsMember(suite.ctx, suite.project.ID, admin.ID)
	suite.Require().NoError(err)
	suite.True(member)

	suite.Require().NoError(suite.service.DeleteProject(suite.ctx, suite.owner.ID, suite.project.ID))

	member, err = suite.deps.Members.IsMember(suite.ctx, suite.project.ID, admin.ID)
	suite.Require().NoError(err)
	suite.False(member)

	_, err = suite.service.GetProject(suite.ctx, suite.owner.ID, suite.project.ID)
	suite.ErrorIs(err, ErrProjectNotFound)

	var tasks int64
	suite.Require().NoError(suite.db.Model(&models.Task{}).Count(&tasks).Error)
	suite.Zero(tasks)
}

func (suite *ProjectServiceTestSuite) TestAddMember_AfterCachedNegative() {
	user := suite.outsider("new@example.com")

	member, err := suite.deps.Members.IsMember(suite.ctx, suite.project.ID, user.ID)
	suite.Require().NoError(err)
	suite.False(member)
	lookup, err := cache.Get[bool](suite.ctx, suite.store, "projects:exists_member:1:2")
	suite.Require().NoError(err)
	suite.Equal(cache.NegativeHit, lookup.State)

	added, err := suite.service.AddMember(suite.ctx, AddMemberInput{ProjectID: suite.project.ID, ActorID: suite.owner.ID, UserID: user.ID})
	suite.Require().NoError(err)
	suite.Equal(models.RoleMember, added.Role)

	member, err = suite.deps.Members.IsMember(suite.ctx, suite.project.ID, user.ID)
	suite.Require().NoError(err)
	suite.True(member)

	invitations := decoded[jobs.Invitation](&suite.serviceSuite, jobs.TypeNotifyInvitation)
	suite.Equal([]jobs.Invitation{{ProjectID: suite.project.ID, UserID: user.ID, InviterID: suite.owner.ID, Role: models.RoleMember}}, invitations)
}

func (suite *ProjectServiceTestSuite) TestAddMember_Rules() {
	dev := suite.member("dev@example.com", models.RoleMember)
	user := suite.outsider("new@example.com")

	cases := []struct {
		name  string
		input AddMemberInput
		want  error
	}{
		{"owner role", AddMemberInput{ActorID: suite.owner.ID, UserID: user.ID, Role: models.RoleOwner}, ErrCannotGrantOwner},
		{"unknown role", AddMemberInput{ActorID: suite.owner.ID, UserID: user.ID, Role: "guest"}, ErrInvalidRole},
		{"plain member acting", AddMemberInput{ActorID: dev.ID, UserID: user.ID}, apierrors.ErrPermissionDenied},
		{"unknown user", AddMemberInput{ActorID: suite.owner.ID, UserID: 999}, ErrUserNotFound},
		{"already member", AddMemberInput{ActorID: suite.owner.ID, UserID: dev.ID}, ErrAlreadyMember},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			tc.input.ProjectID = suite.project.ID
			_, err := suite.service.AddMember(suite.ctx, tc.input)
			suite.ErrorIs(err, tc.want)
		})
	}
	suite.Empty(suite.queue.Jobs())
}

func (suite *ProjectServiceTestSuite) TestUpdateMemberRole() {
	dev := suite.member("dev@example.com", models.RoleMember)

	// Cached as non-admin before the change.
	admin, err := suite.deps.Members.IsAdminOrOwner(suite.ctx, suite.project.ID, dev.ID)
	suite.Require().NoError(err)
	suite.False(admin)

	member, err := suite.service.UpdateMemberRole(suite.ctx, suite.owner.ID, suite.project.ID, dev.ID, models.RoleAdmin)
	suite.Require().NoError(err)
	suite.Equal(models.RoleAdmin, member.Role)

	admin, err = suite.deps.Members.IsAdminOrOwner(suite.ctx, suite.project.ID, dev.ID)
	suite.Require().NoError(err)
	suite.True(admin)

	changes := decoded[jobs.RoleChange](&suite.serviceSuite, jobs.TypeNotifyRoleChanged)
	suite.Equal([]jobs.RoleChange{{ProjectID: suite.project.ID, UserID: dev.ID, OldRole: models.RoleMember, NewRole: models.RoleAdmin}}, changes)

	suite.queue.Reset()
	_, err = suite.service.UpdateMemberRole(suite.ctx, suite.owner.ID, suite.project.ID, dev.ID, models.RoleAdmin)
	suite.Require().NoError(err)
	suite.Empty(suite.queue.Jobs(), "unchanged role sends nothing")

	_, err = suite.service.UpdateMemberRole(suite.ctx, suite.owner.ID, suite.project.ID, suite.owner.ID, models.RoleMember)
	suite.ErrorIs(err, ErrCannotChangeOwner)

	_, err = suite.service.UpdateMemberRole(suite.ctx, suite.owner.ID, suite.project.ID, dev.ID, models.RoleOwner)
	suite.ErrorIs(err, ErrCannotGrantOwner)

	_, err = suite.service.UpdateMemberRole(suite.ctx, suite.owner.ID, suite.project.ID, 999, models.RoleViewer)
	suite.ErrorIs(err, ErrMemberNotFound)
}

func (suite *ProjectServiceTestSuite) TestRemoveMember() {
	dev := suite.member("dev@example.com", models.RoleMember)

	suite.Require().NoError(suite.service.RemoveMember(suite.ctx, suite.owner.ID, suite.project.ID, dev.ID))

	member, err := suite.deps.Members.IsMember(suite.ctx, suite.project.ID, dev.ID)
	suite.Require().NoError(err)
	suite.False(member)

	removals := decoded[jobs.Removal](&suite.serviceSuite, jobs.TypeNotifyRemoved)
	suite.Equal([]jobs.Removal{{ProjectID: suite.project.ID, ProjectName: "Apollo", UserID: dev.ID}}, removals)

	err = suite.service.RemoveMember(suite.ctx, suite.owner.ID, suite.project.ID, suite.owner.ID)
	suite.ErrorIs(err, ErrCannotRemoveOwner)
}

func (suite *ProjectServiceTestSuite) TestLeaveProject() {
	viewer := suite.member("viewer@example.com", models.RoleViewer)

	suite.Require().NoError(suite.service.LeaveProject(suite.ctx, viewer.ID, suite.project.ID))
	suite.Empty(suite.queue.OfType(jobs.TypeNotifyRemoved))

	_, err := suite.service.ListMembers(suite.ctx, viewer.ID, suite.project.ID)
	suite.ErrorIs(err, ErrProjectNotFound)

	err = suite.service.LeaveProject(suite.ctx, suite.owner.ID, suite.project.ID)
	suite.ErrorIs(err, ErrOwnerCannotLeave)

	members, err := suite.service.ListMembers(suite.ctx, suite.owner.ID, suite.project.ID)
	suite.Require().NoError(err)
	suite.Len(members, 1)
}

func TestProjectServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceTestSuite))
}

