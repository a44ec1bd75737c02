// Package rndctest runs a loopback rndc control channel for tests.
package rndctest

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/rndcctl/internal/auth"
	"github.com/danmuck/rndcctl/internal/protocol/frame"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
)

// DefaultNonce is the nonce handed out by a Server unless overridden.
const DefaultNonce = "1234567890"

// Handler answers one command. The returned table becomes the reply _data.
type Handler func(command string, req *wire.Table) *wire.Table

// Script takes over a whole accepted connection.
type Script func(c *Conn)

type Option func(*Server)

func WithHandler(h Handler) Option {
	return func(s *Server) { s.handler = h }
}

func WithScript(fn Script) Option {
	return func(s *Server) { s.script = fn }
}

// WithNonce sets the nonce; an empty value omits _nonce from replies.
func WithNonce(nonce string) Option {
	return func(s *Server) { s.nonce = nonce }
}

type Server struct {
	t       testing.TB
	ln      net.Listener
	alg     auth.Algorithm
	key     []byte
	codec   *frame.Codec
	nonce   string
	handler Handler
	script  Script

	mu       sync.Mutex
	requests []*wire.Table
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// Start listens on 127.0.0.1 and serves until the test ends.
func Start(t testing.TB, alg auth.Algorithm, key []byte, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		t:       t,
		ln:      ln,
		alg:     alg,
		key:     key,
		codec:   frame.NewCodec(alg, key),
		nonce:   DefaultNonce,
		handler: Echo,
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Echo answers every command with result "0".
func Echo(command string, _ *wire.Table) *wire.Table {
	return wire.NewTable().
		SetString(schema.KeyType, command).
		SetString(schema.KeyResult, "0")
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Requests returns every decoded request seen so far.
func (s *Server) Requests() []*wire.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*wire.Table, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c := &Conn{Conn: conn, srv: s}
			defer func() {
				_ = c.Close()
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			if s.script != nil {
				s.script(c)
				return
			}
			s.serve(c)
		}()
	}
}

func (s *Server) serve(c *Conn) {
	for {
		req, err := c.ReadRequest()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.t.Logf("rndctest: read: %v", err)
			}
			return
		}
		cmd := schema.Data(req).Text(schema.KeyType)
		if err := c.Reply(req, s.handler(cmd, req)); err != nil {
			s.t.Logf("rndctest: reply: %v", err)
			return
		}
	}
}

// Conn is one accepted client connection.
type Conn struct {
	net.Conn
	srv *Server
}

// ReadRequest reads and verifies one request packet.
func (c *Conn) ReadRequest() (*wire.Table, error) {
	packet, err := frame.ReadPacket(c.Conn, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}
	env, err := c.srv.codec.Decode(packet)
	if err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	c.srv.requests = append(c.srv.requests, env)
	c.srv.mu.Unlock()
	return env, nil
}

// ReplyPacket builds the signed reply to req without writing it.
func (c *Conn) ReplyPacket(req, data *wire.Table) ([]byte, error) {
	return c.srv.Packet(c.srv.replyEnvelope(req, data))
}

func (c *Conn) Reply(req, data *wire.Table) error {
	packet, err := c.ReplyPacket(req, data)
	if err != nil {
		return err
	}
	_, err = c.Write(packet)
	return err
}

func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Close()
}

// Packet signs env with the server key.
func (s *Server) Packet(env *wire.Table) ([]byte, error) {
	return s.codec.Encode(env)
}

func (s *Server) replyEnvelope(req, data *wire.Table) *wire.Table {
	now := time.Now().Unix()
	ctrl := wire.NewTable()
	if reqCtrl, ok := req.Table(schema.KeyCtrl); ok {
		if ser, ok := reqCtrl.Bytes(schema.KeySerial); ok {
			ctrl.Set(schema.KeySerial, ser)
		}
	}
	ctrl.SetString(schema.KeyTime, strconv.FormatInt(now, 10))
	ctrl.SetString(schema.KeyExpires, strconv.FormatInt(now+60, 10))
	ctrl.SetString(schema.KeyReply, "1")
	if s.nonce != "" {
		ctrl.SetString(schema.KeyNonce, s.nonce)
	}
	if data == nil {
		data = wire.NewTable()
	}
	return wire.NewTable().
		Set(schema.KeyCtrl, ctrl).
		Set(schema.KeyData, data)
}
