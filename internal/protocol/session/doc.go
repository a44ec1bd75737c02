// Package session owns one rndc control connection.
//
// Ownership boundary:
// - nonce handshake (Connecting -> Handshaking -> Ready -> Closed)
// - request serial and _ctrl stamping
// - stream reassembly of length-framed packets
// - ordered notification delivery to the caller
//
// Replies carry no correlation id. A caller that issues several commands
// before reading replies can only match them by arrival order.
package session
