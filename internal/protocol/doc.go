// Package protocol owns the rndc wire contract shared by every layer.
//
// Ownership boundary:
// - error taxonomy for decode, authentication and session failures
// - cursor/wire/frame primitives live in subpackages
// - session state machine lives in protocol/session
package protocol
