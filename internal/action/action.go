// Package action defines the queued action model shared by the queue and sync engine.
// An action records a user intent captured while offline, waiting to be replayed
// against the backend once connectivity returns.
package action

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ActionType = string

// Well-known action types. The queue itself is agnostic: unknown types are
// accepted and stay queued until a handler for them is registered.
const (
	TypeParticipate         ActionType = "participate"
	TypeCancelParticipation ActionType = "cancel_participation"
	TypeCreateChallenge     ActionType = "create_challenge"
	TypeUpdateChallenge     ActionType = "update_challenge"
	TypeUpdateProfile       ActionType = "update_profile"
	TypeNotifySupporters    ActionType = "notify_supporters"
)

type Action struct {
	ID         string         `json:"id"`
	Type       ActionType     `json:"type"`
	Payload    map[string]any `json:"payload"`
	RetryCount int            `json:"retry_count"`
	QueuedAt   int64          `json:"queued_at"`
	LastError  string         `json:"last_error,omitempty"`
}

func New(actionType ActionType, payload map[string]any) *Action {
	return &Action{
		ID:         uuid.New().String(),
		Type:       actionType,
		Payload:    payload,
		RetryCount: 0,
		QueuedAt:   time.Now().UnixMilli(),
	}
}

// Age reports how long the action has been waiting since it was enqueued.
func (a *Action) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(a.QueuedAt))
}

func (a *Action) ToJSON() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func FromJSON(data string) (*Action, error) {
	var a Action
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}

	return &a, nil
}
