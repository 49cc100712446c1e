package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/models"
)

// Close codes sent after the handshake when a socket is refused.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
)

// TokenParser resolves a bearer token to a user ID.
type TokenParser interface {
	Parse(token string) (uint64, error)
}

// UserSource returns an active user or an error.
type UserSource interface {
	ActiveUser(ctx context.Context, id uint64) (*models.User, error)
}

// MembershipChecker answers whether a user is in a project.
type MembershipChecker interface {
	IsMember(ctx context.Context, projectID, userID uint64) (bool, error)
}

// Gate admits websocket connections to a project's group. Refusals are
// sent as close frames after the upgrade so clients can tell an auth
// failure from a transport failure.
type Gate struct {
	hub     *Hub
	tokens  TokenParser
	users   UserSource
	members MembershipChecker
	log     *slog.Logger

	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewGate(hub *Hub, tokens TokenParser, users UserSource, members MembershipChecker, log *slog.Logger) *Gate {
	return &Gate{
		hub:     hub,
		tokens:  tokens,
		users:   users,
		members: members,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuffer: 64,
	}
}

// Handle serves GET /ws/projects/:project_id?token=...
func (g *Gate) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx := c.Request.Context()

	userID, err := g.tokens.Parse(c.Query("token"))
	if err != nil {
		refuse(conn, CloseUnauthorized, "unauthorized")
		return
	}
	if _, err := g.users.ActiveUser(ctx, userID); err != nil {
		refuse(conn, CloseUnauthorized, "unauthorized")
		return
	}

	projectID, err := strconv.ParseUint(c.Param("project_id"), 10, 64)
	if err != nil {
		refuse(conn, CloseForbidden, "forbidden")
		return
	}
	member, err := g.members.IsMember(ctx, projectID, userID)
	if err != nil {
		g.log.Warn("membership check failed", "project_id", projectID, "user_id", userID, "error", err)
		refuse(conn, CloseForbidden, "forbidden")
		return
	}
	if !member {
		refuse(conn, CloseForbidden, "forbidden")
		return
	}

	group := events.ProjectGroup(projectID)
	client := newClient(conn, g.log.With("project_id", projectID, "user_id", userID), g.sendBuffer)
	g.hub.Join(group, client)
	client.log.Debug("websocket connected")

	go client.writePump()
	client.readPump()

	g.hub.Leave(group, client)
	client.Close()
	client.log.Debug("websocket disconnected")
}

func refuse(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	conn.Close()
}
