// Package cursor drives the Cursor Agent CLI.
//
// The CLI has no persistent server mode, so every turn spawns a fresh
// `cursor-agent --print --output-format stream-json` process. The chat id
// observed in the first turn's system or result event is passed to later
// turns via --resume, which is what turns independent processes into one
// multi-turn conversation.
//
// The CLI exposes no control channel, so control requests (interrupt,
// set_permission_mode, and so on) always fail with UnsupportedFeatureError.
package cursor
