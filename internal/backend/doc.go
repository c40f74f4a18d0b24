// Package backend describes the supported agent CLIs: their immutable
// capability tables, the Session contract every protocol adapter implements,
// and per-backend validation of configuration options.
//
// Capability gating happens here so that an unsupported operation is rejected
// before anything touches a transport.
package backend
