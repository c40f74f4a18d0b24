// Package subprocess provides the subprocess-based transport shared by the
// agent backends.
//
// This package implements the Transport interface by spawning an agent CLI
// as a child process and communicating via stdin/stdout. It handles process
// lifecycle management, message buffering, and error handling; it has no
// knowledge of any backend's protocol.
package subprocess
