package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/testutil"
)

// TaskHandlerTestSuite drives the task routes through the router
type TaskHandlerTestSuite struct {
	suite.Suite
	env     *testEnv
	owner   *models.User
	viewer  *models.User
	project *models.Project
}

func (suite *TaskHandlerTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.owner = testutil.CreateUser(suite.T(), suite.env.db, "owner@example.com")
	suite.viewer = testutil.CreateUser(suite.T(), suite.env.db, "viewer@example.com")
	suite.project = testutil.CreateProject(suite.T(), suite.env.db, "Apollo", suite.owner)
	testutil.AddMember(suite.T(), suite.env.db, suite.project, suite.viewer, models.RoleViewer)
}

func (suite *TaskHandlerTestSuite) tasksURL(suffix string) string {
	return fmt.Sprintf("/api/projects/%d/tasks%s", suite.project.ID, suffix)
}

func (suite *TaskHandlerTestSuite) createTask(title string) dto.TaskDTO {
	w := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(""), map[string]any{"title": title}, suite.owner.ID)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[dto.TaskDTO](suite.T(), w)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	w := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(""), map[string]any{
		"title":       "Write docs",
		"priority":    "high",
		"assignee_id": suite.owner.ID,
	}, suite.owner.ID)

	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	task := decodeBody[dto.TaskDTO](suite.T(), w)
	suite.Equal("Write docs", task.Title)
	suite.Equal(models.TaskPriorityHigh, task.Priority)
	suite.Equal(models.TaskStatusPending, task.Status)
	suite.Require().NotNil(task.AssigneeID)
	suite.Equal(suite.owner.ID, *task.AssigneeID)
	suite.Len(suite.env.queue.OfType(jobs.TypeBroadcastTask), 1)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Rejections() {
	tests := []struct {
		name   string
		body   map[string]any
		userID uint64
		status int
	}{
		{"missing title", map[string]any{"description": "x"}, suite.owner.ID, http.StatusBadRequest},
		{"invalid priority", map[string]any{"title": "x", "priority": "critical"}, suite.owner.ID, http.StatusBadRequest},
		{"viewer", map[string]any{"title": "x"}, suite.viewer.ID, http.StatusForbidden},
		{"unauthenticated", map[string]any{"title": "x"}, 0, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(""), tt.body, tt.userID)
			suite.Equal(tt.status, w.Code, w.Body.String())
		})
	}
}

func (suite *TaskHandlerTestSuite) TestGetTask_OutsiderSeesNotFound() {
	task := suite.createTask("Secret")
	outsider := testutil.CreateUser(suite.T(), suite.env.db, "outsider@example.com")

	w := suite.env.do(suite.T(), http.MethodGet, suite.tasksURL(fmt.Sprintf("/%d", task.ID)), nil, outsider.ID)

	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal(apierrors.ErrCodeNotFound, decodeBody[errorBody](suite.T(), w).Code)
}

func (suite *TaskHandlerTestSuite) TestGetTask_WrongProjectInPath() {
	task := suite.createTask("Mine")
	other := testutil.CreateProject(suite.T(), suite.env.db, "Gemini", suite.owner)

	w := suite.env.do(suite.T(), http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks/%d", other.ID, task.ID), nil, suite.owner.ID)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestGetTask_InvalidID() {
	w := suite.env.do(suite.T(), http.MethodGet, suite.tasksURL("/abc"), nil, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks_FiltersAndOrder() {
	first := suite.createTask("First")
	second := suite.createTask("Second")
	status := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/status", second.ID)),
		map[string]any{"status": "in_progress"}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, status.Code, status.Body.String())

	w := suite.env.do(suite.T(), http.MethodGet, suite.tasksURL(""), nil, suite.viewer.ID)
	suite.Require().Equal(http.StatusOK, w.Code)
	all := decodeBody[dto.ListResponse[dto.TaskDTO]](suite.T(), w)
	suite.Require().Len(all.Items, 2)
	suite.Equal(first.ID, all.Items[0].ID)
	suite.Equal(int64(2), all.Pagination.Total)

	w = suite.env.do(suite.T(), http.MethodGet, suite.tasksURL("?status=in_progress"), nil, suite.viewer.ID)
	suite.Require().Equal(http.StatusOK, w.Code)
	filtered := decodeBody[dto.ListResponse[dto.TaskDTO]](suite.T(), w)
	suite.Require().Len(filtered.Items, 1)
	suite.Equal(second.ID, filtered.Items[0].ID)

	w = suite.env.do(suite.T(), http.MethodGet, suite.tasksURL("?assignee_id=abc"), nil, suite.viewer.ID)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask() {
	task := suite.createTask("Draft")

	w := suite.env.do(suite.T(), http.MethodPatch, suite.tasksURL(fmt.Sprintf("/%d", task.ID)),
		map[string]any{"title": "Final", "description": "done"}, suite.owner.ID)

	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[dto.TaskDTO](suite.T(), w)
	suite.Equal("Final", updated.Title)
	suite.Equal("done", updated.Description)

	w = suite.env.do(suite.T(), http.MethodPatch, suite.tasksURL(fmt.Sprintf("/%d", task.ID)),
		map[string]any{"title": "Viewer edit"}, suite.viewer.ID)
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestChangeStatus() {
	task := suite.createTask("Flow")

	w := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/status", task.ID)),
		map[string]any{"status": "completed"}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(models.TaskStatusCompleted, decodeBody[dto.TaskDTO](suite.T(), w).Status)

	w = suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/status", task.ID)),
		map[string]any{"status": "finished"}, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/status", task.ID)),
		map[string]any{}, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestAssignAndUnassign() {
	task := suite.createTask("Pair")
	member := testutil.CreateUser(suite.T(), suite.env.db, "member@example.com")
	testutil.AddMember(suite.T(), suite.env.db, suite.project, member, models.RoleMember)
	url := suite.tasksURL(fmt.Sprintf("/%d/assign", task.ID))

	w := suite.env.do(suite.T(), http.MethodPost, url, map[string]any{"assignee_id": member.ID}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assigned := decodeBody[dto.TaskDTO](suite.T(), w)
	suite.Require().NotNil(assigned.Assignee)
	suite.Equal(member.Email, assigned.Assignee.Email)

	w = suite.env.do(suite.T(), http.MethodPost, url, map[string]any{"assignee_id": nil}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Nil(decodeBody[dto.TaskDTO](suite.T(), w).AssigneeID)

	outsider := testutil.CreateUser(suite.T(), suite.env.db, "outsider@example.com")
	w = suite.env.do(suite.T(), http.MethodPost, url, map[string]any{"assignee_id": outsider.ID}, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestReorderTask() {
	a := suite.createTask("A")
	b := suite.createTask("B")
	c := suite.createTask("C")

	w := suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/reorder", c.ID)),
		map[string]any{"position": a.Position}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(a.Position, decodeBody[dto.TaskDTO](suite.T(), w).Position)

	positions := testutil.Positions(suite.T(), suite.env.db, suite.project.ID)
	suite.Equal(a.Position, positions[c.ID])
	suite.Equal(a.Position+1, positions[a.ID])
	suite.Equal(b.Position+1, positions[b.ID])

	w = suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/reorder", c.ID)),
		map[string]any{}, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.env.do(suite.T(), http.MethodPost, suite.tasksURL(fmt.Sprintf("/%d/reorder", c.ID)),
		map[string]any{"position": -1}, suite.owner.ID)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestSetTags() {
	task := suite.createTask("Tagged")
	tag := testutil.CreateTag(suite.T(), suite.env.db, suite.project, "backend")
	url := suite.tasksURL(fmt.Sprintf("/%d/tags", task.ID))

	w := suite.env.do(suite.T(), http.MethodPost, url, map[string]any{"tag_ids": []uint64{tag.ID, tag.ID}}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	tagged := decodeBody[dto.TaskDTO](suite.T(), w)
	suite.Require().Len(tagged.Tags, 1)
	suite.Equal("backend", tagged.Tags[0].Name)

	w = suite.env.do(suite.T(), http.MethodPost, url, map[string]any{"tag_ids": []uint64{}}, suite.owner.ID)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Empty(decodeBody[dto.TaskDTO](suite.T(), w).Tags)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	task := suite.createTask("Doomed")
	url := suite.tasksURL(fmt.Sprintf("/%d", task.ID))

	suite.Equal(http.StatusForbidden, suite.env.do(suite.T(), http.MethodDelete, url, nil, suite.viewer.ID).Code)
	suite.Equal(http.StatusOK, suite.env.do(suite.T(), http.MethodDelete, url, nil, suite.owner.ID).Code)
	suite.Equal(http.StatusNotFound, suite.env.do(suite.T(), http.MethodGet, url, nil, suite.owner.ID).Code)
	suite.Len(suite.env.queue.OfType(jobs.TypeBroadcastTaskDeleted), 1)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
