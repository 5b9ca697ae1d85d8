package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for every WebSocket frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope stamped with the current time.
func NewMessage(msgType string, payload any) (*Message, error) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		data = encoded
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Client → Server message types.
const (
	TypeTabActivated    = "tab.activated"
	TypeTabUpdated      = "tab.updated"
	TypeWindowFocus     = "window.focus"
	TypeUserActivity    = "user.activity"
	TypeHeartbeat       = "heartbeat"
	TypeTimerStart      = "timer.start"
	TypeTimerPause      = "timer.pause"
	TypeTimerResume     = "timer.resume"
	TypeTimerReset      = "timer.reset"
	TypeOverrideRequest = "override.request"
	TypeStatusGet       = "status.get"
)

// Server → Client message types. The first four mirror the notification
// event kinds and carry the event itself as payload.
const (
	TypeStateChanged   = "state.changed"
	TypeTimerStarted   = "timer.started"
	TypeTimerCompleted = "timer.completed"
	TypeTabBlocked     = "tab.blocked"
	TypeTabNavigate    = "tab.navigate"
	TypeStatus         = "status"
	TypeError          = "error"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrCommandFailed  = "COMMAND_FAILED"
)

// Client → Server payloads.

type TabPayload struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

type WindowFocusPayload struct {
	Focused bool `json:"focused"`
}

type UserActivityPayload struct {
	Kind string `json:"kind"`
}

type HeartbeatPayload struct {
	ActiveTab *TabPayload `json:"activeTab,omitempty"`
}

type TimerStartPayload struct {
	Type string `json:"type,omitempty"`
}

type OverrideRequestPayload struct {
	Domain  string `json:"domain"`
	Minutes int    `json:"minutes"`
}

// Server → Client payloads.

type NavigatePayload struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage builds an error envelope ready to send.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{Code: code, Message: message})
}
