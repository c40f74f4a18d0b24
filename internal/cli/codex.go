package cli

import (
	"fmt"
	"strings"

	"github.com/wagiedev/agent-sdk-go/internal/config"
)

// CodexBinary is the executable name of the Codex CLI.
const CodexBinary = "codex"

// CodexPathEnvVar overrides Codex CLI discovery when set.
const CodexPathEnvVar = "CODEX_CLI_PATH"

// BuildCodexAppServerArgs constructs the arguments for the persistent
// `codex app-server` subprocess. Model and thread configuration travel over
// JSON-RPC, so only process-level config overrides go on the command line.
func BuildCodexAppServerArgs(options *config.Options) []string {
	args := []string{"app-server"}

	if options.Codex != nil && options.Codex.ApprovalPolicy != "" {
		args = append(args, "-c", fmt.Sprintf("approval_policy=%q", options.Codex.ApprovalPolicy))
	}

	return args
}

// BuildCodexExecArgs constructs the arguments for a one-shot
// `codex exec --json` invocation. The prompt goes last.
func BuildCodexExecArgs(prompt string, options *config.Options) []string {
	args := []string{"exec", "--json"}

	if options.Model != "" {
		args = append(args, "--model", options.Model)
	}

	if options.Codex != nil {
		if options.Codex.ApprovalPolicy != "" {
			args = append(args, "-c", fmt.Sprintf("approval_policy=%q", options.Codex.ApprovalPolicy))
		}

		if perms := codexSandboxPermissions(options.Codex.SandboxMode); len(perms) > 0 {
			quoted := make([]string, len(perms))
			for i, p := range perms {
				quoted[i] = fmt.Sprintf("%q", p)
			}

			args = append(args, "-c", fmt.Sprintf("sandbox_permissions=[%s]", strings.Join(quoted, ", ")))
		}
	}

	args = appendExtraArgs(args, options.ExtraArgs)

	return append(args, prompt)
}

// codexSandboxPermissions maps a sandbox mode name to the permission list the
// Codex CLI expects.
func codexSandboxPermissions(mode string) []string {
	switch mode {
	case "workspace-write":
		return []string{"disk-full-read-access", "disk-write-cwd"}
	case "danger-full-access":
		return []string{"disk-full-read-access", "disk-full-write-access", "network-full-access"}
	default:
		// "read-only" and unknown modes add no permissions.
		return nil
	}
}

// appendExtraArgs appends arbitrary --key or --key value flags.
func appendExtraArgs(args []string, extra map[string]*string) []string {
	for key, value := range extra {
		if value == nil {
			args = append(args, "--"+key)
		} else {
			args = append(args, "--"+key, *value)
		}
	}

	return args
}
