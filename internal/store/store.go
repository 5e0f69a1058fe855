// ABOUTME: Store interface and data types for chatd persistence
// ABOUTME: Defines User, Conversation, Message, EngineConfig, Report structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = errors.New("email already registered")

// ErrDuplicateEngine is returned when creating an engine config whose name or key already exists
var ErrDuplicateEngine = errors.New("engine config already exists")

// Role constants for user accounts
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Sender constants for message records
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Report status constants
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// User represents a registered account, including its daily quota state.
// LastMessageDate is nil until the user sends their first message.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Phone             string
	BirthYear         string
	Country           string
	State             string
	Role              string
	DailyMessageCount int
	LastMessageDate   *time.Time
	PrivacyAcceptedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Conversation groups an ordered sequence of messages owned by one user.
// Message order is the append-only seq column, not timestamps.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn within a conversation. Immutable once created.
type Message struct {
	ID             string
	ConversationID string
	Seq            int
	Sender         string // "user" or "bot"
	Text           string
	CreatedAt      time.Time
}

// EngineConfig describes one completion engine available for serving.
// At most one config is active at any instant.
type EngineConfig struct {
	ID          string
	Name        string
	Key         string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Report is a user-submitted issue ticket.
type Report struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      string // "open" or "resolved"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session is an authenticated browser session backed by a cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store defines the interface for chatd persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserName(ctx context.Context, id, firstName, lastName string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error

	// Quota state
	SetQuotaState(ctx context.Context, userID string, count int, last time.Time) error
	IncrementDailyCount(ctx context.Context, userID string) (int, error)
	ResetAllDailyCounts(ctx context.Context, now time.Time) error

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages (append is the only mutation)
	AppendMessage(ctx context.Context, msg *Message) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Engine configs
	CreateEngineConfig(ctx context.Context, cfg *EngineConfig) error
	GetEngineConfig(ctx context.Context, id string) (*EngineConfig, error)
	GetActiveEngineConfig(ctx context.Context) (*EngineConfig, error)
	ListEngineConfigs(ctx context.Context) ([]*EngineConfig, error)
	UpdateEngineConfig(ctx context.Context, id, name, key, description string) error
	ActivateEngineConfig(ctx context.Context, id string) error
	DeleteEngineConfig(ctx context.Context, id string) error

	// Reports
	CreateReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context) ([]*Report, error)
	ListUserReports(ctx context.Context, userID string) ([]*Report, error)
	UpdateReportStatus(ctx context.Context, id, status string) error
	DeleteReport(ctx context.Context, id string) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Maintenance
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEmptyConversationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
