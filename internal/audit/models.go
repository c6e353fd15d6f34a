package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies an auth audit event
type EventType string

const (
	EventUserRegistered       EventType = "user.registered"
	EventLoginSucceeded       EventType = "login.succeeded"
	EventLoginFailed          EventType = "login.failed"
	EventTokenRefreshed       EventType = "token.refreshed"
	EventRefreshReuseDetected EventType = "token.refresh_reuse_detected"
	EventLogout               EventType = "logout"
)

// Event is a single auth audit record published to Kafka.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Family    string    `json:"family,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates an audit event with a fresh id and timestamp
func NewEvent(eventType EventType, userID string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

func (e *Event) WithFamily(family string) *Event {
	e.Family = family
	return e
}

func (e *Event) WithClientIP(ip string) *Event {
	e.ClientIP = ip
	return e
}

func (e *Event) WithReason(reason string) *Event {
	e.Reason = reason
	return e
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PartitionKey keeps all events of one user on the same partition so
// consumers see them in order. Anonymous events fall back to the event id.
func (e *Event) PartitionKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ID.String()
}
