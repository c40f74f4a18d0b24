package cursor

import (
	"encoding/json"
	"log/slog"

	"github.com/wagiedev/agent-sdk-go/internal/message"
)

// Codec for Cursor Agent stream-json events:
//
//	{type: "system"}                      -> SystemMessage
//	{type: "assistant"}                   -> AssistantMessage{[TextBlock]}
//	{type: "thinking"}                    -> AssistantMessage{[ThinkingBlock]}
//	{type: "tool_call", subtype: "started"}   -> AssistantMessage{[ToolUseBlock]}
//	{type: "tool_call", subtype: "completed"} -> AssistantMessage{[ToolResultBlock]}
//	{type: "result"}                      -> ResultMessage
//	{type: "user"}                        -> UserMessage
//
// Unknown event types parse to (nil, nil) for forward compatibility.

// Parse parses one Cursor Agent stream-json event into a message.
func Parse(log *slog.Logger, data map[string]any) (message.Message, error) {
	eventType, _ := data["type"].(string)

	switch eventType {
	case "system":
		return parseSystemEvent(data), nil

	case "assistant":
		return parseAssistantEvent(data), nil

	case "thinking":
		return parseThinkingEvent(data), nil

	case "tool_call":
		return parseToolCallEvent(data), nil

	case "result":
		return parseResultEvent(data), nil

	case "user":
		return parseUserEvent(data), nil

	default:
		log.Debug("Skipping unknown event type", "event_type", eventType)

		return nil, nil
	}
}

// ExtractChatID pulls the conversation id out of system and result events.
// Returns "" for events that carry none. The CLI is inconsistent about the
// field name, so both spellings are checked.
func ExtractChatID(data map[string]any) string {
	eventType, _ := data["type"].(string)

	switch eventType {
	case "system":
		if id, ok := data["chatId"].(string); ok && id != "" {
			return id
		}

		id, _ := data["session_id"].(string)

		return id

	case "result":
		if id, ok := data["session_id"].(string); ok && id != "" {
			return id
		}

		id, _ := data["chatId"].(string)

		return id

	default:
		return ""
	}
}

func parseSystemEvent(data map[string]any) *message.SystemMessage {
	subtype, _ := data["subtype"].(string)
	if subtype == "" {
		subtype = "init"
	}

	return &message.SystemMessage{
		Type:    "system",
		Subtype: subtype,
		Data:    data,
	}
}

func parseAssistantEvent(data map[string]any) message.Message {
	msg, ok := data["message"].(map[string]any)
	if !ok {
		msg = data
	}

	var text string

	switch content := msg["content"].(type) {
	case string:
		text = content

	case []any:
		for _, block := range content {
			blockMap, ok := block.(map[string]any)
			if !ok {
				continue
			}

			if blockType, _ := blockMap["type"].(string); blockType == "text" {
				if t, ok := blockMap["text"].(string); ok {
					text += t
				}
			}
		}

	default:
		text, _ = data["text"].(string)
	}

	if text == "" {
		return nil
	}

	model, _ := msg["model"].(string)
	if model == "" {
		model, _ = data["model"].(string)
	}

	result := &message.AssistantMessage{
		Type:    "assistant",
		Content: []message.ContentBlock{&message.TextBlock{Type: "text", Text: text}},
		Model:   model,
	}

	if parentID, ok := data["parent_tool_use_id"].(string); ok && parentID != "" {
		result.ParentToolUseID = &parentID
	}

	return result
}

func parseThinkingEvent(data map[string]any) message.Message {
	thinking, _ := data["thinking"].(string)
	if thinking == "" {
		thinking, _ = data["text"].(string)
	}

	if thinking == "" {
		return nil
	}

	signature, _ := data["signature"].(string)

	return &message.AssistantMessage{
		Type: "assistant",
		Content: []message.ContentBlock{
			&message.ThinkingBlock{Type: "thinking", Thinking: thinking, Signature: signature},
		},
	}
}

func parseToolCallEvent(data map[string]any) message.Message {
	subtype, _ := data["subtype"].(string)

	switch subtype {
	case "started":
		id, _ := data["id"].(string)
		if id == "" {
			id, _ = data["tool_use_id"].(string)
		}

		name, _ := data["name"].(string)
		if name == "" {
			name, _ = data["tool_name"].(string)
		}

		input, _ := data["input"].(map[string]any)
		if input == nil {
			input = map[string]any{}
		}

		result := &message.AssistantMessage{
			Type: "assistant",
			Content: []message.ContentBlock{
				&message.ToolUseBlock{Type: "tool_use", ID: id, Name: name, Input: input},
			},
		}

		if parentID, ok := data["parent_tool_use_id"].(string); ok && parentID != "" {
			result.ParentToolUseID = &parentID
		}

		return result

	case "completed":
		toolUseID, _ := data["tool_use_id"].(string)
		if toolUseID == "" {
			toolUseID, _ = data["id"].(string)
		}

		block := &message.ToolResultBlock{
			Type:      "tool_result",
			ToolUseID: toolUseID,
		}

		output := data["output"]
		if output == nil {
			output = data["content"]
		}

		if text, ok := output.(string); ok && text != "" {
			block.Content = []message.ContentBlock{&message.TextBlock{Type: "text", Text: text}}
		}

		if isError, ok := data["is_error"].(bool); ok {
			block.IsError = isError
		}

		return &message.AssistantMessage{
			Type:    "assistant",
			Content: []message.ContentBlock{block},
		}

	default:
		return nil
	}
}

func parseResultEvent(data map[string]any) *message.ResultMessage {
	subtype, _ := data["subtype"].(string)
	if subtype == "" {
		subtype = "success"
	}

	result := &message.ResultMessage{
		Type:      "result",
		Subtype:   subtype,
		NumTurns:  1,
		SessionID: ExtractChatID(data),
	}

	if durationMs, ok := data["duration_ms"].(float64); ok {
		result.DurationMs = int(durationMs)
	}

	if durationAPIMs, ok := data["duration_api_ms"].(float64); ok {
		result.DurationAPIMs = int(durationAPIMs)
	}

	if isError, ok := data["is_error"].(bool); ok {
		result.IsError = isError
	}

	if numTurns, ok := data["num_turns"].(float64); ok {
		result.NumTurns = int(numTurns)
	}

	if cost, ok := data["total_cost_usd"].(float64); ok {
		result.TotalCostUSD = &cost
	}

	if usageData, ok := data["usage"].(map[string]any); ok {
		raw, err := json.Marshal(usageData)
		if err == nil {
			var usage message.Usage
			if json.Unmarshal(raw, &usage) == nil {
				result.Usage = &usage
			}
		}
	}

	if text, ok := data["result"].(string); ok {
		result.Result = &text
	}

	if structured, ok := data["structured_output"]; ok {
		result.StructuredOutput = structured
	}

	return result
}

func parseUserEvent(data map[string]any) *message.UserMessage {
	msg, ok := data["message"].(map[string]any)
	if !ok {
		msg = data
	}

	var content message.UserMessageContent

	switch c := msg["content"].(type) {
	case string:
		content = message.NewUserMessageContent(c)

	case []any:
		// Cursor user events with block arrays are rare; flatten to JSON text.
		raw, err := json.Marshal(c)
		if err == nil {
			content = message.NewUserMessageContent(string(raw))
		}

	default:
		content = message.NewUserMessageContent("")
	}

	result := &message.UserMessage{
		Type:    "user",
		Content: content,
	}

	if uuid, ok := data["uuid"].(string); ok && uuid != "" {
		result.UUID = &uuid
	}

	if parentID, ok := data["parent_tool_use_id"].(string); ok && parentID != "" {
		result.ParentToolUseID = &parentID
	}

	if toolUseResult, ok := data["tool_use_result"].(map[string]any); ok {
		result.ToolUseResult = toolUseResult
	}

	return result
}
