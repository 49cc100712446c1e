package jobs

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"gorm.io/gorm"
)

type published struct {
	projectID uint64
	eventType string
	envelope  events.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, projectID uint64, eventType string, payload any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{projectID: projectID, eventType: eventType, envelope: payload.(events.Envelope)})
	return true
}

type recordingDeliverer struct {
	sent []Notification
}

func (d *recordingDeliverer) Deliver(_ context.Context, n Notification) error {
	d.sent = append(d.sent, n)
	return nil
}

type JobsTestSuite struct {
	suite.Suite
	db        *gorm.DB
	publisher *recordingPublisher
	deliverer *recordingDeliverer
	worker    *queue.Worker

	owner    *models.User
	assignee *models.User
	project  *models.Project
	task     *models.Task
}

func (suite *JobsTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.publisher = &recordingPublisher{}
	suite.deliverer = &recordingDeliverer{}

	repos := repository.NewRepositories(suite.db)
	suite.worker = queue.NewWorker(queue.NewMemoryQueue(1), testutil.Logger(), 1)
	Register(suite.worker,
		NewBroadcaster(repos, suite.publisher, testutil.Logger()),
		NewNotifier(repos, suite.deliverer, testutil.Logger()))

	suite.owner = testutil.CreateUser(suite.T(), suite.db, "owner@example.com")
	suite.assignee = testutil.CreateUser(suite.T(), suite.db, "assignee@example.com")
	suite.project = testutil.CreateProject(suite.T(), suite.db, "Apollo", suite.owner)
	testutil.AddMember(suite.T(), suite.db, suite.project, suite.assignee, models.RoleMember)
	suite.task = testutil.CreateTask(suite.T(), suite.db, suite.project, suite.owner, "Launch", 1)
}

func (suite *JobsTestSuite) run(jobType string, payload any) {
	job, err := queue.NewJob(jobType, payload)
	suite.Require().NoError(err)
	suite.worker.Process(context.Background(), job)
}

func (suite *JobsTestSuite) assign(user *models.User) {
	suite.Require().NoError(suite.db.Model(suite.task).Update("assignee_id", user.ID).Error)
}

func (suite *JobsTestSuite) TestTaskBroadcastSendsCurrentState() {
	suite.assign(suite.assignee)
	suite.Require().NoError(suite.db.Model(suite.task).Update("title", "Launch v2").Error)

	suite.run(TypeBroadcastTask, TaskBroadcast{EventType: events.TaskUpdated, TaskID: suite.task.ID, UserID: suite.owner.ID})

	suite.Require().Len(suite.publisher.sent, 1)
	got := suite.publisher.sent[0]
	suite.Equal(suite.project.ID, got.projectID)
	suite.Equal(events.TaskUpdated, got.eventType)
	suite.Equal(events.TaskUpdated, got.envelope.EventType)
	suite.Equal(suite.owner.Email, got.envelope.User.Email)

	data := got.envelope.Data.(events.TaskData)
	suite.Equal("Launch v2", data.Title)
	suite.Require().NotNil(data.Assignee)
	suite.Equal(suite.assignee.ID, data.Assignee.ID)
}

func (suite *JobsTestSuite) TestTaskBroadcastForDeletedTaskIsDropped() {
	suite.Require().NoError(repository.NewTaskRepository(suite.db).Delete(context.Background(), suite.task.ID))

	suite.run(TypeBroadcastTask, TaskBroadcast{EventType: events.TaskUpdated, TaskID: suite.task.ID, UserID: suite.owner.ID})
	suite.Empty(suite.publisher.sent)
}

func (suite *JobsTestSuite) TestBroadcastForMissingActorIsDropped() {
	suite.run(TypeBroadcastTask, TaskBroadcast{EventType: events.TaskUpdated, TaskID: suite.task.ID, UserID: 999})
	suite.run(TypeBroadcastTaskDeleted, TaskDeletedBroadcast{TaskID: suite.task.ID, ProjectID: suite.project.ID, UserID: 999})
	suite.Empty(suite.publisher.sent)
}

func (suite *JobsTestSuite) TestTaskDeletedSendsStub() {
	suite.run(TypeBroadcastTaskDeleted, TaskDeletedBroadcast{TaskID: 77, ProjectID: suite.project.ID, UserID: suite.owner.ID})

	suite.Require().Len(suite.publisher.sent, 1)
	suite.Equal(events.TaskDeleted, suite.publisher.sent[0].eventType)
	suite.Equal(events.TaskStub{ID: 77, ProjectID: suite.project.ID}, suite.publisher.sent[0].envelope.Data)
}

func (suite *JobsTestSuite) createComment(author *models.User) *models.Comment {
	comment := &models.Comment{TaskID: suite.task.ID, AuthorID: author.ID, Content: "Looks good"}
	suite.Require().NoError(suite.db.Create(comment).Error)
	return comment
}

func (suite *JobsTestSuite) TestCommentBroadcastUsesTaskProject() {
	comment := suite.createComment(suite.assignee)

	suite.run(TypeBroadcastComment, CommentBroadcast{EventType: events.CommentCreated, CommentID: comment.ID, UserID: suite.assignee.ID})
	suite.run(TypeBroadcastCommentDeleted, CommentDeletedBroadcast{CommentID: comment.ID, TaskID: suite.task.ID, ProjectID: suite.project.ID, UserID: suite.assignee.ID})

	suite.Require().Len(suite.publisher.sent, 2)
	created := suite.publisher.sent[0]
	suite.Equal(suite.project.ID, created.projectID)
	suite.Equal("Looks good", created.envelope.Data.(events.CommentData).Content)
	suite.Equal(suite.assignee.Email, created.envelope.Data.(events.CommentData).Author.Email)
	suite.Equal(events.CommentStub{ID: comment.ID, TaskID: suite.task.ID}, suite.publisher.sent[1].envelope.Data)
}

func (suite *JobsTestSuite) TestAssignmentNotifications() {
	suite.run(TypeNotifyTaskAssigned, TaskAssignment{TaskID: suite.task.ID, UserID: suite.assignee.ID, ProjectName: "Apollo"})
	suite.run(TypeNotifyTaskUnassigned, TaskAssignment{TaskID: suite.task.ID, UserID: suite.assignee.ID, ProjectName: "Apollo"})

	suite.Require().Len(suite.deliverer.sent, 2)
	suite.Equal(TypeNotifyTaskAssigned, suite.deliverer.sent[0].Kind)
	suite.Equal(suite.assignee.ID, suite.deliverer.sent[0].Recipient.ID)
	suite.Contains(suite.deliverer.sent[0].Body, "Apollo")
	suite.Contains(suite.deliverer.sent[1].Subject, "unassigned")
}

func (suite *JobsTestSuite) TestNotificationForInactiveUserIsSkipped() {
	suite.Require().NoError(suite.db.Model(suite.assignee).Update("is_active", false).Error)

	suite.run(TypeNotifyStatusChanged, StatusChange{
		TaskID: suite.task.ID, UserID: suite.assignee.ID,
		OldStatus: models.TaskStatusPending, NewStatus: models.TaskStatusCompleted,
	})
	suite.Empty(suite.deliverer.sent)
}

func (suite *JobsTestSuite) TestStatusChangedNotification() {
	suite.run(TypeNotifyStatusChanged, StatusChange{
		TaskID: suite.task.ID, UserID: suite.assignee.ID,
		OldStatus: models.TaskStatusPending, NewStatus: models.TaskStatusCompleted,
	})

	suite.Require().Len(suite.deliverer.sent, 1)
	suite.Contains(suite.deliverer.sent[0].Body, "pending to completed")
}

func (suite *JobsTestSuite) TestCommentNotificationsRecheckRules() {
	suite.assign(suite.assignee)
	byOwner := suite.createComment(suite.owner)

	// Owner is creator and author: no creator notice. Assignee hears about it.
	suite.run(TypeNotifyCommentToCreator, CommentNotice{CommentID: byOwner.ID, UserID: suite.owner.ID})
	suite.run(TypeNotifyCommentToAssignee, CommentNotice{CommentID: byOwner.ID, UserID: suite.assignee.ID})
	suite.Require().Len(suite.deliverer.sent, 1)
	suite.Equal(suite.assignee.ID, suite.deliverer.sent[0].Recipient.ID)

	// Reassigned before the job ran.
	suite.Require().NoError(suite.db.Model(suite.task).Update("assignee_id", nil).Error)
	suite.run(TypeNotifyCommentToAssignee, CommentNotice{CommentID: byOwner.ID, UserID: suite.assignee.ID})
	suite.Len(suite.deliverer.sent, 1)

	byAssignee := suite.createComment(suite.assignee)
	suite.run(TypeNotifyCommentToCreator, CommentNotice{CommentID: byAssignee.ID, UserID: suite.owner.ID})
	suite.Require().Len(suite.deliverer.sent, 2)
	suite.Equal(suite.owner.ID, suite.deliverer.sent[1].Recipient.ID)
}

func (suite *JobsTestSuite) TestMembershipNotifications() {
	suite.run(TypeNotifyInvitation, Invitation{ProjectID: suite.project.ID, UserID: suite.assignee.ID, InviterID: suite.owner.ID, Role: models.RoleMember})
	suite.run(TypeNotifyRoleChanged, RoleChange{ProjectID: suite.project.ID, UserID: suite.assignee.ID, OldRole: models.RoleMember, NewRole: models.RoleAdmin})
	suite.Require().NoError(repository.NewProjectRepository(suite.db).Delete(context.Background(), suite.project.ID))
	suite.run(TypeNotifyRemoved, Removal{ProjectID: suite.project.ID, ProjectName: "Apollo", UserID: suite.assignee.ID})
	suite.run(TypeNotifyRoleChanged, RoleChange{ProjectID: suite.project.ID, UserID: suite.assignee.ID, OldRole: models.RoleAdmin, NewRole: models.RoleViewer})

	suite.Require().Len(suite.deliverer.sent, 3)
	suite.Contains(suite.deliverer.sent[0].Body, "as member")
	suite.Contains(suite.deliverer.sent[1].Body, "from member to admin")
	suite.Equal("You were removed from Apollo", suite.deliverer.sent[2].Subject)
}

func TestJobsTestSuite(t *testing.T) {
	suite.Run(t, new(JobsTestSuite))
}
