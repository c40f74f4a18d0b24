// Package cli provides binary discovery, version validation, and command
// building for the supported agent CLIs.
//
// # CLI Discovery
//
// The Discoverer interface locates an agent CLI binary:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    Binary:  "claude",
//	    CliPath: "",           // Optional explicit path
//	    Logger:  slog.Default(),
//	})
//	cliPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.CliPath (if provided)
//  2. The environment variable named by Config.PathEnvVar (if provided)
//  3. System PATH
//  4. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// # Version Validation
//
// For the Claude CLI, discovery validates the version against MinimumVersion
// (2.0.0). A warning is logged if the version is below minimum. Version
// checking can be skipped via Config.SkipVersionCheck or the
// CLAUDE_AGENT_SDK_SKIP_VERSION_CHECK environment variable. The other CLIs
// publish no minimum version and skip the check.
//
// # Command Building
//
// Each backend has its own argument builder:
//
//	args := cli.BuildArgs("prompt", options, isStreaming)      // claude
//	args := cli.BuildCodexAppServerArgs(options)               // codex app-server
//	args := cli.BuildCodexExecArgs("prompt", options)          // codex exec --json
//	args := cli.BuildCursorArgs("prompt", chatID, options)     // cursor-agent
//	env := cli.BuildEnvironment(options)
package cli
