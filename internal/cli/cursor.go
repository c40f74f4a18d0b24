package cli

import (
	"github.com/wagiedev/agent-sdk-go/internal/config"
)

// CursorBinary is the executable name of the Cursor Agent CLI.
const CursorBinary = "cursor-agent"

// CursorPathEnvVar overrides Cursor Agent CLI discovery when set.
const CursorPathEnvVar = "CURSOR_CLI_PATH"

// BuildCursorArgs constructs the arguments for one Cursor Agent turn.
// Every turn is its own `cursor-agent --print` process; chatID, when known
// from a previous turn, resumes the conversation. The prompt goes last.
func BuildCursorArgs(prompt, chatID string, options *config.Options) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
	}

	if chatID != "" {
		args = append(args, "--resume", chatID)
	}

	if options.Model != "" {
		args = append(args, "--model", options.Model)
	}

	if options.Cursor != nil {
		if options.Cursor.ForceApprove {
			args = append(args, "--force")
		}

		if options.Cursor.Mode != "" {
			args = append(args, "--mode", options.Cursor.Mode)
		}

		if options.Cursor.TrustWorkspace {
			args = append(args, "--trust")
		}
	}

	args = appendExtraArgs(args, options.ExtraArgs)

	return append(args, prompt)
}
