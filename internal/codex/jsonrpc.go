package codex

import "sync/atomic"

// JSON-RPC 2.0 helpers for the Codex app-server protocol. All messages are
// plain maps so they can flow through the line-oriented transport unchanged.

// RequestIDGenerator hands out unique request IDs, starting at 1.
type RequestIDGenerator struct {
	next atomic.Int64
}

// NextID returns the next request ID.
func (g *RequestIDGenerator) NextID() int64 {
	return g.next.Add(1)
}

// BuildRequest builds a JSON-RPC request object.
func BuildRequest(id int64, method string, params map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
}

// BuildNotification builds a JSON-RPC notification (a request without an id).
func BuildNotification(method string, params map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
}

// BuildResponse builds a successful JSON-RPC response for a server request.
func BuildResponse(id any, result map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

// BuildErrorResponse builds a JSON-RPC error response for a server request.
func BuildErrorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// IsResponse reports whether msg is a response to one of our requests.
func IsResponse(msg map[string]any) bool {
	if _, ok := msg["id"]; !ok {
		return false
	}

	_, hasResult := msg["result"]
	_, hasError := msg["error"]

	return hasResult || hasError
}

// IsRequest reports whether msg is a server-initiated request.
func IsRequest(msg map[string]any) bool {
	if _, ok := msg["id"]; !ok {
		return false
	}

	_, hasMethod := msg["method"]

	return hasMethod
}

// IsNotification reports whether msg is a notification (method, no id).
func IsNotification(msg map[string]any) bool {
	if _, ok := msg["id"]; ok {
		return false
	}

	_, hasMethod := msg["method"]

	return hasMethod
}

// Method extracts the method name, or "" if absent.
func Method(msg map[string]any) string {
	method, _ := msg["method"].(string)

	return method
}

// ResponseID extracts a response id as int64.
//
// JSON decoding turns numbers into float64, so both representations are
// accepted. Returns false for string or missing ids.
func ResponseID(msg map[string]any) (int64, bool) {
	switch id := msg["id"].(type) {
	case float64:
		return int64(id), true
	case int64:
		return id, true
	case int:
		return int64(id), true
	default:
		return 0, false
	}
}
