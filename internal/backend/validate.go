package backend

import (
	"github.com/wagiedev/agent-sdk-go/internal/config"
	"github.com/wagiedev/agent-sdk-go/internal/errors"
)

// ValidateOptions checks that every configured option is supported by the
// selected backend. All violations are collected into a single
// UnsupportedOptionsError rather than failing on the first one.
func ValidateOptions(kind config.BackendKind, opts *config.Options) error {
	var fields []string

	switch kind {
	case config.BackendCodex:
		fields = collectCodexViolations(opts)
	case config.BackendCursor:
		fields = collectCursorViolations(opts)
	default:
		// Claude supports every option.
		return nil
	}

	if len(fields) == 0 {
		return nil
	}

	return &errors.UnsupportedOptionsError{
		Backend: Name(kind),
		Fields:  fields,
	}
}

func collectCodexViolations(opts *config.Options) []string {
	var fields []string

	if opts.SystemPrompt != "" || opts.SystemPromptPreset != nil {
		fields = append(fields, "system_prompt")
	}

	if len(opts.Hooks) > 0 {
		fields = append(fields, "hooks")
	}

	if opts.ForkSession {
		fields = append(fields, "fork_session")
	}

	if len(opts.SettingSources) > 0 {
		fields = append(fields, "setting_sources")
	}

	if len(opts.Plugins) > 0 {
		fields = append(fields, "plugins")
	}

	if opts.PermissionPromptToolName != "" {
		fields = append(fields, "permission_prompt_tool_name")
	}

	return fields
}

func collectCursorViolations(opts *config.Options) []string {
	// Cursor rejects everything Codex rejects, plus the callback and MCP
	// surfaces its CLI has no protocol for.
	fields := collectCodexViolations(opts)

	if opts.CanUseTool != nil {
		fields = append(fields, "can_use_tool")
	}

	if len(opts.MCPServers) > 0 || opts.MCPConfig != "" {
		fields = append(fields, "mcp_servers")
	}

	if opts.OutputFormat != nil {
		fields = append(fields, "output_format (structured output)")
	}

	return fields
}
