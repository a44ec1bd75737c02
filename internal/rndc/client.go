// Package rndc is the caller-facing rndc client: connect with a base64 key,
// wait for the handshake, then run commands one at a time.
package rndc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/rndcctl/internal/auth"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
	"github.com/danmuck/rndcctl/internal/protocol/session"
)

var (
	ErrInvalidSecret = errors.New("rndc: invalid base64 secret")
	ErrEmptyCommand  = errors.New("rndc: empty command")
)

type options struct {
	session session.Config
}

type Option func(*options)

// WithSessionConfig overrides the session timeouts and limits.
func WithSessionConfig(cfg session.Config) Option {
	return func(o *options) { o.session = cfg }
}

// Client wraps one Ready session. Replies carry no request id, so Command
// serializes callers and matches replies to requests in FIFO order.
type Client struct {
	sess *session.Session

	cmdMu sync.Mutex
	// stale counts replies owed to commands whose callers gave up.
	stale int
	err   error
}

// Connect dials host:port, signs with the base64 secret under algorithm and
// returns once the server has issued a nonce.
func Connect(ctx context.Context, host string, port int, secret, algorithm string, opts ...Option) (*Client, error) {
	o := options{session: session.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	key, err := DecodeSecret(secret)
	if err != nil {
		return nil, err
	}
	alg, err := auth.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}

	sess, err := session.Dial(ctx, session.Target{
		Host:      host,
		Port:      port,
		Algorithm: alg,
		Secret:    key,
	}, o.session)
	if err != nil {
		return nil, err
	}
	c := &Client{sess: sess}
	if err := c.awaitReady(ctx); err != nil {
		c.abort()
		return nil, err
	}
	logs.Infof("rndc.Connect host=%s port=%d alg=%s session=%s", host, port, alg.Name, sess.ID())
	return c, nil
}

// DecodeSecret decodes a standard base64 key, tolerating surrounding space.
func DecodeSecret(secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	return key, nil
}

func (c *Client) awaitReady(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.sess.Events():
			if !ok {
				return session.ErrSessionClosed
			}
			switch ev.Kind {
			case session.EventReady:
				return nil
			case session.EventError:
				return ev.Err
			case session.EventEnd:
				return session.ErrSessionClosed
			}
		}
	}
}

// Session exposes the underlying session.
func (c *Client) Session() *session.Session {
	return c.sess
}

// Events returns the raw notification stream. Callers that read it directly
// must not also use Command.
func (c *Client) Events() <-chan session.Event {
	return c.sess.Events()
}

// Command sends command and waits for its reply. If ctx expires first the
// reply is discarded when it eventually arrives.
func (c *Client) Command(ctx context.Context, command string) (Response, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Response{}, ErrEmptyCommand
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if c.err != nil {
		return Response{}, c.err
	}

	start := time.Now()
	if err := c.sess.Send(command); err != nil {
		observability.RecordCommand(commandName(command), time.Since(start), false)
		return Response{}, err
	}
	c.stale++

	for {
		select {
		case <-ctx.Done():
			logs.Warnf("rndc.Client.Command session=%s command=%q abandoned err=%v", c.sess.ID(), command, ctx.Err())
			observability.RecordCommand(commandName(command), time.Since(start), false)
			return Response{}, ctx.Err()
		case ev, ok := <-c.sess.Events():
			if !ok {
				c.err = session.ErrSessionClosed
				return Response{}, c.err
			}
			switch ev.Kind {
			case session.EventData:
				c.stale--
				if c.stale > 0 {
					logs.Debugf("rndc.Client.Command session=%s dropped stale reply", c.sess.ID())
					continue
				}
				resp, err := ParseResponse(command, ev.Data)
				observability.RecordCommand(commandName(command), time.Since(start), err == nil)
				return resp, err
			case session.EventError:
				c.err = ev.Err
				observability.RecordCommand(commandName(command), time.Since(start), false)
				return Response{}, ev.Err
			case session.EventEnd:
				c.err = session.ErrSessionClosed
				observability.RecordCommand(commandName(command), time.Since(start), false)
				return Response{}, c.err
			case session.EventTimeout:
				logs.Debugf("rndc.Client.Command session=%s command=%q idle", c.sess.ID(), command)
			}
		}
	}
}

// Close ends the session and drains the remaining notifications.
func (c *Client) Close() error {
	err := c.sess.End()
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-c.sess.Events():
			if !ok {
				return err
			}
		case <-timer.C:
			c.abort()
			return err
		}
	}
}

// abort closes the transport and discards whatever is still queued.
func (c *Client) abort() {
	_ = c.sess.Close()
	for range c.sess.Events() {
	}
}

// commandName keeps metric label cardinality bounded to the verb.
func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Recoverable reports whether the client can keep running commands after
// err. Protocol and transport failures end the session.
func Recoverable(err error) bool {
	return errors.Is(err, ErrCommandFailed) ||
		errors.Is(err, ErrEmptyCommand) ||
		errors.Is(err, context.DeadlineExceeded)
}
