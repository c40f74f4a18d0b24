package agentsdk

// Hook types are re-exported from types.go for convenience.
// See types.go for documentation on hook-related types including:
// - HookEvent, HookInput, HookCallback, HookMatcher
// - All hook event constants (HookEventPreToolUse, etc.)
// - All hook input types (PreToolUseHookInput, etc.)
// - All hook output types (HookJSONOutput, SyncHookJSONOutput, etc.)
