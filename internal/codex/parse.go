package codex

import (
	"encoding/json"
	"log/slog"

	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// Codec for Codex wire events. The app-server emits JSON-RPC notifications;
// `codex exec --json` emits flat JSONL events. Both are normalized onto the
// shared message types:
//
//	thread/started                    -> SystemMessage{subtype: "init"}
//	item/completed (agent_message)    -> AssistantMessage{[TextBlock]}
//	item/completed (reasoning)        -> AssistantMessage{[ThinkingBlock]}
//	item/completed (command_execution)-> AssistantMessage{[ToolUseBlock, ToolResultBlock]}
//	item/completed (file_change)      -> AssistantMessage{[ToolUseBlock, ToolResultBlock]}
//	item/agentMessage/delta           -> AssistantMessage{[TextBlock]} (partial)
//	turn/completed                    -> ResultMessage
//
// Unknown notifications and item types parse to (nil, nil) so new server
// events never break existing consumers.

// ParseNotification parses an app-server JSON-RPC notification into a message.
// Returns (nil, nil) for notifications that carry nothing of interest.
func ParseNotification(log *slog.Logger, method string, params map[string]any) (message.Message, error) {
	switch method {
	case "thread/started":
		threadID, _ := params["threadId"].(string)

		return threadStartedMessage(threadID), nil

	case "item/completed":
		return parseItemCompleted(log, params)

	case "item/agentMessage/delta":
		return textDeltaMessage(params), nil

	case "item/reasoning/summaryTextDelta", "item/reasoning/textDelta":
		return reasoningDeltaMessage(params), nil

	case "item/commandExecution/outputDelta":
		return outputDeltaMessage(params, "command_output"), nil

	case "item/fileChange/outputDelta":
		return outputDeltaMessage(params, "file_change_output"), nil

	case "turn/completed":
		return parseTurnCompleted(params), nil

	case "turn/started":
		return &message.SystemMessage{
			Type:    "system",
			Subtype: "turn_started",
			Data:    params,
		}, nil

	case "error":
		return errorSystemMessage(params), nil

	default:
		log.Debug("Skipping unknown notification", "method", method)

		return nil, nil
	}
}

// ParseExecEvent parses one `codex exec --json` JSONL event into a message.
// Returns (nil, nil) for unknown event types.
func ParseExecEvent(log *slog.Logger, data map[string]any) (message.Message, error) {
	eventType, _ := data["type"].(string)

	switch eventType {
	case "message":
		return parseExecMessage(data)

	case "function_call":
		return parseExecFunctionCall(data), nil

	case "function_call_output":
		return parseExecFunctionOutput(data), nil

	case "item.completed":
		return parseItemCompleted(log, data)

	case "turn.completed":
		return parseTurnCompleted(data), nil

	case "thread.started":
		// Exec mode uses thread_id while the app-server uses threadId.
		threadID, _ := data["threadId"].(string)
		if threadID == "" {
			threadID, _ = data["thread_id"].(string)
		}

		return threadStartedMessage(threadID), nil

	case "turn.started":
		return &message.SystemMessage{
			Type:    "system",
			Subtype: "turn_started",
			Data:    data,
		}, nil

	case "error":
		return errorSystemMessage(data), nil

	case "turn.failed":
		msg := "Turn failed"
		if errData, ok := data["error"].(map[string]any); ok {
			if m, ok := errData["message"].(string); ok && m != "" {
				msg = m
			}
		}

		return errorSystemMessage(map[string]any{"message": msg}), nil

	default:
		log.Debug("Skipping unknown exec event", "event_type", eventType)

		return nil, nil
	}
}

func threadStartedMessage(threadID string) *message.SystemMessage {
	return &message.SystemMessage{
		Type:    "system",
		Subtype: "init",
		Data: map[string]any{
			"type":     "system",
			"subtype":  "init",
			"threadId": threadID,
		},
	}
}

func errorSystemMessage(params map[string]any) *message.SystemMessage {
	msg, _ := params["message"].(string)
	if msg == "" {
		msg = "Unknown error"
	}

	return &message.SystemMessage{
		Type:    "system",
		Subtype: "error",
		Data: map[string]any{
			"type":    "system",
			"subtype": "error",
			"message": msg,
		},
	}
}

// parseItemCompleted handles completed items from both wire formats. The
// app-server nests the item under "item"; older exec output puts the item
// fields at the top level.
func parseItemCompleted(log *slog.Logger, params map[string]any) (message.Message, error) {
	item, ok := params["item"].(map[string]any)
	if !ok {
		item = params
	}

	itemType, _ := item["type"].(string)

	switch itemType {
	case "agent_message", "message":
		text := extractItemText(item)
		if text == "" {
			return nil, nil
		}

		model, _ := item["model"].(string)

		return &message.AssistantMessage{
			Type:    "assistant",
			Content: []message.ContentBlock{&message.TextBlock{Type: "text", Text: text}},
			Model:   model,
		}, nil

	case "reasoning":
		text := extractReasoningText(item)
		if text == "" {
			return nil, nil
		}

		return &message.AssistantMessage{
			Type:    "assistant",
			Content: []message.ContentBlock{&message.ThinkingBlock{Type: "thinking", Thinking: text}},
		}, nil

	case "command_execution":
		return commandExecutionMessage(item), nil

	case "file_change":
		return fileChangeMessage(item), nil

	default:
		log.Debug("Skipping unknown item type", "item_type", itemType)

		return nil, nil
	}
}

// extractItemText joins the text parts of an item's content array, falling
// back to rawText/text fields when no array is present.
func extractItemText(item map[string]any) string {
	if contentArr, ok := item["content"].([]any); ok {
		var text string

		for _, c := range contentArr {
			part, ok := c.(map[string]any)
			if !ok {
				continue
			}

			if t, ok := part["text"].(string); ok {
				text += t
			}
		}

		return text
	}

	if raw, ok := item["rawText"].(string); ok {
		return raw
	}

	text, _ := item["text"].(string)

	return text
}

// extractReasoningText joins the reasoning summary parts, falling back to the
// plain text field.
func extractReasoningText(item map[string]any) string {
	if summary, ok := item["summary"].([]any); ok {
		var text string

		for _, c := range summary {
			part, ok := c.(map[string]any)
			if !ok {
				continue
			}

			if t, ok := part["text"].(string); ok {
				text += t
			}
		}

		return text
	}

	text, _ := item["text"].(string)

	return text
}

// commandExecutionMessage maps a completed command execution onto a synthetic
// Bash tool use plus its result, so consumers see Codex shell activity the
// same way they see any other backend's tool calls.
func commandExecutionMessage(item map[string]any) *message.AssistantMessage {
	id, _ := item["id"].(string)
	command, _ := item["command"].(string)

	result := &message.ToolResultBlock{
		Type:      "tool_result",
		ToolUseID: id,
	}

	if output, ok := item["output"].(string); ok && output != "" {
		result.Content = []message.ContentBlock{&message.TextBlock{Type: "text", Text: output}}
	}

	if exitCode, ok := item["exitCode"].(float64); ok {
		result.IsError = exitCode != 0
	}

	return &message.AssistantMessage{
		Type: "assistant",
		Content: []message.ContentBlock{
			&message.ToolUseBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  "Bash",
				Input: map[string]any{"command": command},
			},
			result,
		},
	}
}

// fileChangeMessage maps a completed file change onto a synthetic Edit tool
// use plus a fixed success result.
func fileChangeMessage(item map[string]any) *message.AssistantMessage {
	id, _ := item["id"].(string)
	filePath, _ := item["filePath"].(string)

	return &message.AssistantMessage{
		Type: "assistant",
		Content: []message.ContentBlock{
			&message.ToolUseBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  "Edit",
				Input: map[string]any{"file_path": filePath},
			},
			&message.ToolResultBlock{
				Type:      "tool_result",
				ToolUseID: id,
				Content:   []message.ContentBlock{&message.TextBlock{Type: "text", Text: "File change applied"}},
			},
		},
	}
}

func textDeltaMessage(params map[string]any) message.Message {
	text, _ := params["delta"].(string)
	if text == "" {
		return nil
	}

	return &message.AssistantMessage{
		Type:    "assistant",
		Content: []message.ContentBlock{&message.TextBlock{Type: "text", Text: text}},
	}
}

func reasoningDeltaMessage(params map[string]any) message.Message {
	text, _ := params["delta"].(string)
	if text == "" {
		return nil
	}

	return &message.AssistantMessage{
		Type:    "assistant",
		Content: []message.ContentBlock{&message.ThinkingBlock{Type: "thinking", Thinking: text}},
	}
}

func outputDeltaMessage(params map[string]any, subtype string) message.Message {
	delta, _ := params["delta"].(string)
	if delta == "" {
		return nil
	}

	return &message.SystemMessage{
		Type:    "system",
		Subtype: subtype,
		Data: map[string]any{
			"type":    "system",
			"subtype": subtype,
			"output":  delta,
		},
	}
}

// parseTurnCompleted maps turn completion onto a ResultMessage. Codex does
// not report durations or cost; the thread id doubles as the session id.
func parseTurnCompleted(params map[string]any) *message.ResultMessage {
	threadID, _ := params["threadId"].(string)

	result := &message.ResultMessage{
		Type:      "result",
		Subtype:   "success",
		NumTurns:  1,
		SessionID: threadID,
	}

	if usageData, ok := params["usage"].(map[string]any); ok {
		raw, err := json.Marshal(usageData)
		if err == nil {
			var usage message.Usage
			if json.Unmarshal(raw, &usage) == nil {
				result.Usage = &usage
			}
		}
	}

	return result
}

func parseExecMessage(data map[string]any) (message.Message, error) {
	role, _ := data["role"].(string)

	switch role {
	case "assistant":
		text, _ := data["content"].(string)
		if text == "" {
			return nil, nil
		}

		return &message.AssistantMessage{
			Type:    "assistant",
			Content: []message.ContentBlock{&message.TextBlock{Type: "text", Text: text}},
		}, nil

	case "system":
		return &message.SystemMessage{
			Type:    "system",
			Subtype: "init",
			Data:    data,
		}, nil

	default:
		return nil, nil
	}
}

func parseExecFunctionCall(data map[string]any) message.Message {
	callID, _ := data["call_id"].(string)
	name, _ := data["name"].(string)

	// Arguments arrive as a JSON-encoded string.
	input := map[string]any{}
	if arguments, ok := data["arguments"].(string); ok && arguments != "" {
		_ = json.Unmarshal([]byte(arguments), &input)
	}

	return &message.AssistantMessage{
		Type: "assistant",
		Content: []message.ContentBlock{
			&message.ToolUseBlock{Type: "tool_use", ID: callID, Name: name, Input: input},
		},
	}
}

func parseExecFunctionOutput(data map[string]any) message.Message {
	callID, _ := data["call_id"].(string)

	result := &message.ToolResultBlock{
		Type:      "tool_result",
		ToolUseID: callID,
	}

	if output, ok := data["output"].(string); ok && output != "" {
		result.Content = []message.ContentBlock{&message.TextBlock{Type: "text", Text: output}}
	}

	return &message.AssistantMessage{
		Type:    "assistant",
		Content: []message.ContentBlock{result},
	}
}
