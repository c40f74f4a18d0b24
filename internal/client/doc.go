// Package client implements the interactive client for the Claude backend.
//
// The client package provides a stateful, bidirectional interface to the Claude CLI
// that maintains session state across multiple exchanges. It implements the shared
// backend.Session interface and additionally exposes the operations only the Claude
// control protocol supports. Unlike the one-shot Query() function, Client enables:
//   - Multi-turn conversations with persistent context
//   - Interruption of Claude's processing
//   - Dynamic configuration changes (model, permissions)
//   - Hook system integration for tool permission management
//
// The Client uses the protocol package for bidirectional control message handling
// and manages its own goroutines for message reading and routing.
package client
