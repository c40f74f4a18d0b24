package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/agent-sdk-go/internal/config"
)

// TestBuildCodexAppServerArgs_Basic tests the minimal app-server invocation.
func TestBuildCodexAppServerArgs_Basic(t *testing.T) {
	args := BuildCodexAppServerArgs(&config.Options{})

	require.Equal(t, []string{"app-server"}, args)
}

// TestBuildCodexAppServerArgs_WithApprovalPolicy tests the config override flag.
func TestBuildCodexAppServerArgs_WithApprovalPolicy(t *testing.T) {
	args := BuildCodexAppServerArgs(&config.Options{
		Codex: &config.CodexOptions{ApprovalPolicy: "full-auto"},
	})

	require.Equal(t, []string{"app-server", "-c", `approval_policy="full-auto"`}, args)
}

// TestBuildCodexExecArgs_Basic tests the minimal exec invocation.
func TestBuildCodexExecArgs_Basic(t *testing.T) {
	args := BuildCodexExecArgs("What is 2+2?", &config.Options{})

	require.Equal(t, []string{"exec", "--json", "What is 2+2?"}, args)
}

// TestBuildCodexExecArgs_PromptGoesLast tests that all flags precede the prompt.
func TestBuildCodexExecArgs_PromptGoesLast(t *testing.T) {
	args := BuildCodexExecArgs("the prompt", &config.Options{
		Model: "o3",
		Codex: &config.CodexOptions{ApprovalPolicy: "suggest"},
	})

	require.Equal(t, "the prompt", args[len(args)-1])
	require.Contains(t, args, "--model")
	require.Contains(t, args, "o3")
	require.Contains(t, args, `approval_policy="suggest"`)
}

// TestBuildCodexExecArgs_SandboxModes tests sandbox permission mapping.
func TestBuildCodexExecArgs_SandboxModes(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{
			mode: "workspace-write",
			want: `sandbox_permissions=["disk-full-read-access", "disk-write-cwd"]`,
		},
		{
			mode: "danger-full-access",
			want: `sandbox_permissions=["disk-full-read-access", "disk-full-write-access", "network-full-access"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			args := BuildCodexExecArgs("test", &config.Options{
				Codex: &config.CodexOptions{SandboxMode: tt.mode},
			})

			require.Contains(t, args, tt.want)
		})
	}
}

// TestBuildCodexExecArgs_ReadOnlyAddsNoPermissions tests that read-only mode
// passes no sandbox permission overrides.
func TestBuildCodexExecArgs_ReadOnlyAddsNoPermissions(t *testing.T) {
	args := BuildCodexExecArgs("test", &config.Options{
		Codex: &config.CodexOptions{SandboxMode: "read-only"},
	})

	require.Equal(t, []string{"exec", "--json", "test"}, args)
}

// TestBuildCodexExecArgs_WithExtraArgs tests arbitrary flag passthrough.
func TestBuildCodexExecArgs_WithExtraArgs(t *testing.T) {
	profile := "ci"

	args := BuildCodexExecArgs("test", &config.Options{
		ExtraArgs: map[string]*string{
			"profile":            &profile,
			"skip-git-repo-check": nil,
		},
	})

	require.Contains(t, args, "--profile")
	require.Contains(t, args, "ci")
	require.Contains(t, args, "--skip-git-repo-check")
	require.Equal(t, "test", args[len(args)-1])
}

// TestBuildCursorArgs_Basic tests the minimal per-turn invocation.
func TestBuildCursorArgs_Basic(t *testing.T) {
	args := BuildCursorArgs("Say hello", "", &config.Options{})

	require.Equal(t, []string{"--print", "--output-format", "stream-json", "Say hello"}, args)
}

// TestBuildCursorArgs_WithResume tests that a known chat id resumes the conversation.
func TestBuildCursorArgs_WithResume(t *testing.T) {
	args := BuildCursorArgs("continue", "chat_abc123", &config.Options{})

	require.Contains(t, args, "--resume")

	resumeIdx := -1

	for i, arg := range args {
		if arg == "--resume" {
			resumeIdx = i
		}
	}

	require.GreaterOrEqual(t, resumeIdx, 0)
	require.Equal(t, "chat_abc123", args[resumeIdx+1])
}

// TestBuildCursorArgs_WithCursorOptions tests backend-specific flags.
func TestBuildCursorArgs_WithCursorOptions(t *testing.T) {
	args := BuildCursorArgs("test", "", &config.Options{
		Model: "gpt-5",
		Cursor: &config.CursorOptions{
			ForceApprove:   true,
			Mode:           "plan",
			TrustWorkspace: true,
		},
	})

	require.Contains(t, args, "--force")
	require.Contains(t, args, "--mode")
	require.Contains(t, args, "plan")
	require.Contains(t, args, "--trust")
	require.Contains(t, args, "--model")
	require.Contains(t, args, "gpt-5")
	require.Equal(t, "test", args[len(args)-1])
}

// TestBuildCursorArgs_NoResumeOnFirstTurn tests that the first turn carries no
// resume flag.
func TestBuildCursorArgs_NoResumeOnFirstTurn(t *testing.T) {
	args := BuildCursorArgs("first", "", &config.Options{})

	require.NotContains(t, args, "--resume")
}
