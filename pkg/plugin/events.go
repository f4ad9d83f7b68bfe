package plugin

import (
	"encoding/json"
	"fmt"
)

// TurnEvent is one event in an agent turn. Concrete types: UserMessage,
// AssistantMessage, ToolResult, AgentAction.
type TurnEvent interface {
	// EventType returns the wire tag of the event.
	EventType() string

	// Text returns the event's capturable text, "" when there is none.
	Text() string
}

// UserMessage is a message from the user.
type UserMessage struct {
	Content string `json:"content"`
}

func (e *UserMessage) EventType() string { return "user_message" }
func (e *UserMessage) Text() string      { return e.Content }

// AssistantMessage is a message from the agent.
type AssistantMessage struct {
	Content string `json:"content"`
}

func (e *AssistantMessage) EventType() string { return "assistant_message" }
func (e *AssistantMessage) Text() string      { return e.Content }

// ToolResult is the output of a tool invocation. Output is optional; tools
// with side effects only may omit it.
type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	IsErr  bool   `json:"is_error,omitempty"`
}

func (e *ToolResult) EventType() string { return "tool_result" }
func (e *ToolResult) Text() string      { return "" }

// AgentAction is a decision the agent took, with its reasoning. Feeds the
// wisdom log when wisdom capture is enabled.
type AgentAction struct {
	ActionType string   `json:"action_type"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func (e *AgentAction) EventType() string { return "agent_action" }
func (e *AgentAction) Text() string      { return "" }

// DecodeTurnEvent decodes a JSON event by its "type" tag.
func DecodeTurnEvent(data []byte) (TurnEvent, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode turn event: %w", err)
	}

	var event TurnEvent
	switch tag.Type {
	case "user_message":
		event = &UserMessage{}
	case "assistant_message":
		event = &AssistantMessage{}
	case "tool_result":
		event = &ToolResult{}
	case "agent_action":
		event = &AgentAction{}
	default:
		return nil, fmt.Errorf("decode turn event: unknown type %q", tag.Type)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode turn event: %w", err)
	}
	return event, nil
}

// DecodeTurnEvents decodes a JSON array of events, skipping unknown types
// so that newer hosts can emit events this plugin does not understand.
func DecodeTurnEvents(data []byte) ([]TurnEvent, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode turn events: %w", err)
	}

	var events []TurnEvent
	for _, item := range raw {
		event, err := DecodeTurnEvent(item)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
