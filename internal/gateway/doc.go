// Package gateway exposes rndc commands over HTTP. Each request opens its
// own session, runs one command and closes it.
package gateway
