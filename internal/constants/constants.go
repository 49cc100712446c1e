package constants

import "time"

// Session and context keys
const (
	SessionCookieName = "task_session"
	ContextKeyUserID  = "user_id"
	ContextKeyProject = "project"
	ContextKeyTask    = "task"
	ContextKeyRole    = "project_role"
)

// Validation limits
const (
	MinPasswordLength = 8
	MaxTitleLength    = 255
	MaxCommentLength  = 10000
	MaxTagNameLength  = 50
	MaxTagsPerTask    = 20
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Cache TTLs
const (
	ProjectCacheTTL    = 10 * time.Minute
	MembershipCacheTTL = 5 * time.Minute
	CacheTTLJitter     = 30 * time.Second
)
