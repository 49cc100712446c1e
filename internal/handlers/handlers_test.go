package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/cache"
	"github.com/yukikurage/taskflow-api/internal/membership"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"gorm.io/gorm"
)

// testEnv serves the full router over an in-memory database.
type testEnv struct {
	db     *gorm.DB
	queue  *testutil.RecordingQueue
	tokens *auth.TokenService
	users  *services.AuthService
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	q := &testutil.RecordingQueue{}
	log := testutil.Logger()

	repos := repository.NewRepositories(db)
	authority := membership.NewAuthority(cache.NewReadThrough(cache.NewMemoryStore(), log), repos.Projects, log)
	deps := services.Deps{
		Runner:     outbox.NewRunner(db, q, log),
		Repos:      repos,
		Members:    authority,
		Authorizer: permissions.NewAuthorizer(authority),
	}

	users := services.NewAuthService(repos.Users)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	tasks := services.NewTaskService(deps)
	tags := services.NewTagService(deps)

	router := NewRouter(cookie.NewStore([]byte("secret")), tokens, Handlers{
		Auth:     NewAuthHandler(users, tokens),
		Projects: NewProjectHandler(services.NewProjectService(deps)),
		Tasks:    NewTaskHandler(tasks, tags),
		Comments: NewCommentHandler(tasks, services.NewCommentService(deps)),
		Tags:     NewTagHandler(tags),
	}, log)

	return &testEnv{db: db, queue: q, tokens: tokens, users: users, router: router}
}

// do sends a JSON request, authenticated as userID when it is non-zero.
func (e *testEnv) do(t *testing.T, method, path string, body any, userID uint64, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		token, _, err := e.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
