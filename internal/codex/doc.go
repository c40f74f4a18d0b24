// Package codex drives the Codex CLI.
//
// Two modes are supported:
//
//   - Session: a persistent `codex app-server` subprocess speaking JSON-RPC
//     2.0 over stdin/stdout. Turns are started with fire-and-forget
//     turn/start requests; output arrives as notifications.
//   - One-shot: `codex exec --json`, a spawn-per-query mode whose JSONL
//     events are parsed by ParseExecEvent.
//
// Server-initiated approval requests (command execution, file changes) are
// mapped onto the shared tool permission callback as synthetic Bash and Edit
// tool uses, so callers approve Codex activity with the same code path they
// use for other backends.
package codex
