package plugin

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// TruncationMarker is appended when a recall blob is cut to budget.
const TruncationMarker = "\n[context truncated]"

// HookResult is the explicit outcome of a hook. Hooks never panic and
// never surface errors as control flow; the host inspects OK and moves on.
type HookResult struct {
	// OK is false when the hook failed; the failure has already been
	// logged and the turn should proceed without the hook's output.
	OK bool

	// Context is the recalled context blob (RecallContext only).
	Context string

	// Captured counts memories written by the hook (CaptureTurn only).
	Captured int

	// Err is the underlying failure, kept for tests and diagnostics.
	Err error
}

// Hooks are the agent lifecycle integration points.
type Hooks struct {
	config *Config
	client *Client
	log    *logrus.Logger
}

// NewHooks creates hooks from a config. A nil logger selects the standard
// logrus logger.
func NewHooks(config *Config, log *logrus.Logger) *Hooks {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Hooks{
		config: config,
		client: NewClient(config.ServerURL, config.APIKey),
		log:    log,
	}
}

// Client exposes the underlying client for direct calls.
func (h *Hooks) Client() *Client {
	return h.client
}

// RecallContext runs before a turn: it fetches the tiered context blob for
// the user's message, truncated to the configured token budget.
//
// Failures are logged at warn level and reported through the result, never
// raised; a dead memory service must not break the agent.
func (h *Hooks) RecallContext(ctx context.Context, userMessage string) HookResult {
	if !h.config.AutoRecall {
		return HookResult{OK: true}
	}

	blob, err := h.client.Context(ctx, userMessage, h.config.MaxRecallResults)
	if err != nil {
		h.log.WithError(err).Warn("engram recall failed")
		return HookResult{Err: err}
	}

	// Rough budget: 4 characters per token.
	maxChars := h.config.MaxRecallTokens * 4
	if len(blob) > maxChars {
		blob = blob[:maxChars] + TruncationMarker
	}

	return HookResult{OK: true, Context: blob}
}

// CaptureTurn runs after a turn: it sends the conversation text for
// knowledge extraction and, when wisdom capture is enabled, logs any agent
// actions.
//
// Like RecallContext, failures are logged and swallowed.
func (h *Hooks) CaptureTurn(ctx context.Context, events []TurnEvent) HookResult {
	if !h.config.AutoCapture {
		return HookResult{OK: true}
	}

	transcript := buildTranscript(events)
	if transcript == "" {
		return HookResult{OK: true}
	}

	result, err := h.client.Extract(ctx, transcript, "conversation", !h.config.EnableGraph)
	if err != nil {
		h.log.WithError(err).Warn("engram capture failed")
		return HookResult{Err: err}
	}

	captured := len(result.Memories)

	if h.config.EnableWisdom {
		for _, event := range events {
			action, ok := event.(*AgentAction)
			if !ok || action.Reasoning == "" {
				continue
			}
			if _, err := h.client.LogWisdom(ctx, action.ActionType, action.Reasoning, action.Tags); err != nil {
				h.log.WithError(err).Warn("engram wisdom log failed")
			}
		}
	}

	return HookResult{OK: true, Captured: captured}
}

// buildTranscript renders capturable events as "role: text" lines.
func buildTranscript(events []TurnEvent) string {
	var lines []string
	for _, event := range events {
		text := event.Text()
		if text == "" {
			continue
		}
		switch event.(type) {
		case *UserMessage:
			lines = append(lines, "user: "+text)
		case *AssistantMessage:
			lines = append(lines, "assistant: "+text)
		}
	}
	return strings.Join(lines, "\n")
}
