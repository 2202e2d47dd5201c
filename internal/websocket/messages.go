package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server commands
const (
	MessageTypeStartListening MessageType = "start_listening"
	MessageTypeStopListening  MessageType = "stop_listening"
	MessageTypeTextInput      MessageType = "text_input"
	MessageTypeEndSession     MessageType = "end_session"
	MessageTypeDismissCrisis  MessageType = "dismiss_crisis"
	MessageTypeBreathingStart MessageType = "breathing_start"
	MessageTypeBreathingSkip  MessageType = "breathing_skip"
	MessageTypePing           MessageType = "ping"
)

// Server to client events
const (
	MessageTypePhase          MessageType = "phase"
	MessageTypePartial        MessageType = "partial_transcript"
	MessageTypeTurn           MessageType = "turn"
	MessageTypeCrisis         MessageType = "crisis"
	MessageTypeMicUnavailable MessageType = "mic_unavailable"
	MessageTypeBreathing      MessageType = "breathing"
	MessageTypeFinalized      MessageType = "session_finalized"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// CommandMessage is a client to server command. Text is required only for
// text input.
type CommandMessage struct {
	BaseMessage
	Text string `json:"text,omitempty"`
}

// EventMessage is a server to client session update
type EventMessage struct {
	BaseMessage
	Phase     string      `json:"phase,omitempty"`
	Role      string      `json:"role,omitempty"`
	Text      string      `json:"text,omitempty"`
	Breathing interface{} `json:"breathing,omitempty"`
	Session   interface{} `json:"session,omitempty"`
	Code      string      `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// MessageValidator provides validation for incoming WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

var commandTypes = map[MessageType]bool{
	MessageTypeStartListening: true,
	MessageTypeStopListening:  true,
	MessageTypeTextInput:      true,
	MessageTypeEndSession:     true,
	MessageTypeDismissCrisis:  true,
	MessageTypeBreathingStart: true,
	MessageTypeBreathingSkip:  true,
	MessageTypePing:           true,
}

// ValidateMessage validates an incoming command frame
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if !commandTypes[msg.Type] {
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
	if msg.Type == MessageTypeTextInput && msg.Text == "" {
		return nil, fmt.Errorf("text is required for text_input")
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}
	return &msg, nil
}

// NewEventMessage creates a server event frame of the given type
func NewEventMessage(messageType MessageType) *EventMessage {
	return &EventMessage{
		BaseMessage: BaseMessage{
			Type:      messageType,
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}
}

// CreateErrorMessage creates a standardized error event
func CreateErrorMessage(code, message string) *EventMessage {
	event := NewEventMessage(MessageTypeError)
	event.Code = code
	event.Message = message
	return event
}
