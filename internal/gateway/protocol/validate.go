package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeTabActivated:    true,
	TypeTabUpdated:      true,
	TypeWindowFocus:     true,
	TypeUserActivity:    true,
	TypeHeartbeat:       true,
	TypeTimerStart:      true,
	TypeTimerPause:      true,
	TypeTimerResume:     true,
	TypeTimerReset:      true,
	TypeOverrideRequest: true,
	TypeStatusGet:       true,
}

// ValidateClientMessage parses and validates a raw frame from the browser.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}
	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	switch msg.Type {
	case TypeTabActivated, TypeTabUpdated:
		var p TabPayload
		if err := decodePayload(&msg, &p); err != nil {
			return nil, err
		}
		if p.URL == "" {
			return nil, fmt.Errorf("missing required field 'url' in %s payload", msg.Type)
		}
		if p.TabID < 0 {
			return nil, fmt.Errorf("invalid 'tabId' in %s payload", msg.Type)
		}

	case TypeWindowFocus:
		var p WindowFocusPayload
		if err := decodePayload(&msg, &p); err != nil {
			return nil, err
		}

	case TypeUserActivity:
		var p UserActivityPayload
		if err := decodePayload(&msg, &p); err != nil {
			return nil, err
		}
		if p.Kind == "" {
			return nil, fmt.Errorf("missing required field 'kind' in %s payload", msg.Type)
		}

	case TypeOverrideRequest:
		var p OverrideRequestPayload
		if err := decodePayload(&msg, &p); err != nil {
			return nil, err
		}
		if p.Domain == "" {
			return nil, fmt.Errorf("missing required field 'domain' in %s payload", msg.Type)
		}
		if p.Minutes <= 0 {
			return nil, fmt.Errorf("invalid 'minutes' in %s payload", msg.Type)
		}

	case TypeTimerStart:
		if msg.Payload != nil {
			var p TimerStartPayload
			if err := decodePayload(&msg, &p); err != nil {
				return nil, err
			}
		}

	case TypeHeartbeat:
		if msg.Payload != nil {
			var p HeartbeatPayload
			if err := decodePayload(&msg, &p); err != nil {
				return nil, err
			}
		}
	}

	return &msg, nil
}

func decodePayload(msg *Message, dst any) error {
	if msg.Payload == nil {
		return fmt.Errorf("missing 'payload' field for %s", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
	}
	return nil
}
