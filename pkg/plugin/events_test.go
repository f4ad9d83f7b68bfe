package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTurnEvent(t *testing.T) {
	event, err := DecodeTurnEvent([]byte(`{"type": "user_message", "content": "hello"}`))
	require.NoError(t, err)
	msg, ok := event.(*UserMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "user_message", msg.EventType())

	event, err = DecodeTurnEvent([]byte(`{"type": "tool_result", "tool": "search", "is_error": true}`))
	require.NoError(t, err)
	result, ok := event.(*ToolResult)
	require.True(t, ok)
	assert.Equal(t, "search", result.Tool)
	assert.True(t, result.IsErr)
	assert.Equal(t, "", result.Text())

	event, err = DecodeTurnEvent([]byte(`{"type": "agent_action", "action_type": "recommendation", "reasoning": "past orders", "tags": ["coffee"]}`))
	require.NoError(t, err)
	action, ok := event.(*AgentAction)
	require.True(t, ok)
	assert.Equal(t, "recommendation", action.ActionType)
	assert.Equal(t, []string{"coffee"}, action.Tags)
}

func TestDecodeTurnEventUnknownType(t *testing.T) {
	_, err := DecodeTurnEvent([]byte(`{"type": "telemetry", "payload": "x"}`))
	assert.Error(t, err)

	_, err = DecodeTurnEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeTurnEventsSkipsUnknown(t *testing.T) {
	events, err := DecodeTurnEvents([]byte(`[
		{"type": "user_message", "content": "hi"},
		{"type": "telemetry", "payload": "ignored"},
		{"type": "assistant_message", "content": "hello"}
	]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "user_message", events[0].EventType())
	assert.Equal(t, "assistant_message", events[1].EventType())
}

func TestBuildTranscript(t *testing.T) {
	transcript := buildTranscript([]TurnEvent{
		&UserMessage{Content: "what's a good roast?"},
		&ToolResult{Tool: "search", Output: "ignored"},
		&AssistantMessage{Content: "try the Kenyan"},
		&AgentAction{ActionType: "recommendation", Reasoning: "ignored"},
	})

	assert.Equal(t, "user: what's a good roast?\nassistant: try the Kenyan", transcript)
}
