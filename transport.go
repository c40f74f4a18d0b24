package agentsdk

import "github.com/wagiedev/agent-sdk-go/internal/config"

// Transport defines the interface for agent CLI communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation is CLITransport which spawns a subprocess.
// Custom transports can be injected via AgentOptions.Transport.
type Transport = config.Transport
