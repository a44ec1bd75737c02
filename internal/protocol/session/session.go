package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/rndcctl/internal/auth"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
	"github.com/danmuck/rndcctl/internal/protocol"
	"github.com/danmuck/rndcctl/internal/protocol/frame"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
	"github.com/google/uuid"
)

const readChunk = 32 * 1024

var (
	ErrSessionClosed  = errors.New("session: closed")
	ErrHostRequired   = errors.New("session: host required")
	ErrInvalidPort    = errors.New("session: invalid port")
	ErrSecretRequired = errors.New("session: secret required")
	ErrAlgorithm      = errors.New("session: algorithm required")
)

// Target names the server and the shared key used to sign packets.
type Target struct {
	Host      string
	Port      int
	Algorithm auth.Algorithm
	Secret    []byte
}

func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return ErrHostRequired
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, t.Port)
	}
	if t.Algorithm.New == nil {
		return ErrAlgorithm
	}
	if len(t.Secret) == 0 {
		return ErrSecretRequired
	}
	return nil
}

func (t Target) Address() string {
	return net.JoinHostPort(strings.TrimSpace(t.Host), strconv.Itoa(t.Port))
}

// Session is one rndc connection. Notifications are delivered in packet
// arrival order on Events; the caller must drain the channel until it is
// closed.
type Session struct {
	id     string
	cfg    Config
	conn   net.Conn
	codec  *frame.Codec
	events chan Event
	done   chan struct{}
	opened time.Time

	writeMu sync.Mutex

	mu     sync.Mutex
	state  State
	serial uint32
	nonce  wire.Value
	ended  bool

	in inbox
}

// Dial connects to target and starts the handshake.
func Dial(ctx context.Context, target Target, cfg Config) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	logs.Debugf("session.Dial addr=%q alg=%s", target.Address(), target.Algorithm.Name)
	conn, err := dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		logs.Warnf("session.Dial addr=%q err=%v", target.Address(), err)
		observability.RecordSessionError(errorKind(protocol.ErrTransport))
		return nil, &protocol.TransportError{Op: "dial", Err: err}
	}
	return Open(conn, target, cfg), nil
}

// Open runs the protocol over an already connected conn. The handshake probe
// is written before Open returns, so it always precedes the caller's first
// Send. A failed handshake write is reported as the session's EventError.
func Open(conn net.Conn, target Target, cfg Config) *Session {
	cfg = cfg.WithDefaults()
	s := &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		conn:   conn,
		codec:  frame.NewCodec(target.Algorithm, target.Secret),
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
		state:  StateConnecting,
		serial: rand.New(rand.NewSource(time.Now().UnixNano())).Uint32(),
		in:     inbox{limits: cfg.Limits},
	}
	observability.SessionOpened()
	logs.Infof("session.Open id=%s remote=%s alg=%s", s.id, conn.RemoteAddr(), target.Algorithm.Name)

	s.state = StateHandshaking
	s.opened = time.Now()
	handshakeErr := s.write(schema.NullCommand, true)
	go s.run(handshakeErr)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Events returns the notification stream. It is closed after the final
// EventEnd or EventError.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Nonce returns the server nonce once the handshake has completed.
func (s *Session) Nonce() (wire.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce, s.nonce != nil
}

// Send writes one signed command request. Before Ready it goes out without
// a nonce, like the handshake probe.
func (s *Session) Send(command string) error {
	return s.write(command, false)
}

// End half-closes the connection; the server's close then ends the session
// with EventEnd. No sends are accepted afterwards.
func (s *Session) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	logs.Debugf("session.End id=%s", s.id)
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			return nil
		}
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Close ends the session without waiting for the server.
func (s *Session) Close() error {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// write signs and sends one request. handshake selects the opening layout.
// A successful write re-arms the idle deadline; sending counts as traffic.
func (s *Session) write(command string, handshake bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.ended || s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.serial++
	ctrl := schema.Control{
		Serial: s.serial,
		Time:   s.cfg.Now(),
		Expiry: s.cfg.Expiry,
		Nonce:  s.nonce,
	}
	s.mu.Unlock()

	env := schema.Request(ctrl, command)
	if handshake {
		env = schema.Handshake(ctrl)
	}
	if err := schema.ValidateRequest(env); err != nil {
		return err
	}
	packet, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := s.conn.Write(packet); err != nil {
		logs.Errf("session.Session.send id=%s serial=%d err=%v", s.id, ctrl.Serial, err)
		observability.RecordSessionError(errorKind(protocol.ErrTransport))
		return &protocol.TransportError{Op: "write", Err: err}
	}
	if s.cfg.IdleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}
	observability.RecordPacket(observability.DirectionOut)
	observability.RecordTransportBytes(observability.DirectionOut, len(packet))
	logs.Debugf("session.Session.send id=%s serial=%d command=%q bytes=%d", s.id, ctrl.Serial, command, len(packet))
	return nil
}

func (s *Session) run(handshakeErr error) {
	defer close(s.done)
	defer close(s.events)
	defer observability.SessionClosed()

	if handshakeErr != nil {
		s.fail(handshakeErr)
		return
	}

	buf := make([]byte, readChunk)
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			observability.RecordTransportBytes(observability.DirectionIn, n)
			if ferr := s.receive(buf[:n]); ferr != nil {
				s.fail(ferr)
				return
			}
		}
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			logs.Debugf("session.Session.run id=%s idle=%s", s.id, s.cfg.IdleTimeout)
			s.emit(Event{Kind: EventTimeout, Err: protocol.ErrTimeout})
			continue
		}
		if errors.Is(err, io.EOF) || (s.isEnded() && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe))) {
			s.finish()
			return
		}
		s.fail(&protocol.TransportError{Op: "read", Err: err})
		return
	}
}

func (s *Session) receive(chunk []byte) error {
	s.in.append(chunk)
	for {
		packet, ok, err := s.in.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.dispatch(packet); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(packet []byte) error {
	env, err := s.codec.Decode(packet)
	if err != nil {
		return err
	}
	observability.RecordPacket(observability.DirectionIn)

	s.mu.Lock()
	hadNonce := s.nonce != nil
	if nonce, ok := schema.Nonce(env); ok {
		s.nonce = nonce
	}
	ready := !hadNonce && s.nonce != nil
	if ready {
		s.state = StateReady
	}
	s.mu.Unlock()

	switch {
	case ready:
		observability.RecordHandshake(time.Since(s.opened))
		logs.Infof("session.Session.dispatch id=%s ready", s.id)
		s.emit(Event{Kind: EventReady})
	case !hadNonce:
		return protocol.ErrNonceNotReceived
	default:
		logs.Debugf("session.Session.dispatch id=%s data bytes=%d", s.id, len(packet))
		s.emit(Event{Kind: EventData, Data: schema.Data(env)})
	}
	return nil
}

// fail reports err once and tears the connection down.
func (s *Session) fail(err error) {
	logs.Errf("session.Session.fail id=%s state=%s err=%v", s.id, s.State(), err)
	observability.RecordSessionError(errorKind(err))
	s.setState(StateClosed)
	_ = s.conn.Close()
	s.emit(Event{Kind: EventError, Err: err})
}

// finish handles an orderly transport end.
func (s *Session) finish() {
	s.mu.Lock()
	handshaken := s.nonce != nil
	s.state = StateClosed
	s.mu.Unlock()
	_ = s.conn.Close()

	if !handshaken {
		logs.Warnf("session.Session.finish id=%s handshake incomplete", s.id)
		observability.RecordSessionError(errorKind(protocol.ErrHandshakeIncomplete))
		s.emit(Event{Kind: EventError, Err: protocol.ErrHandshakeIncomplete})
	}
	if n := s.in.len(); n > 0 {
		logs.Warnf("session.Session.finish id=%s unread data left over bytes=%d", s.id, n)
	}
	logs.Infof("session.Session.finish id=%s end", s.id)
	s.emit(Event{Kind: EventEnd})
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrBufferUnderrun):
		return "buffer_underrun"
	case errors.Is(err, protocol.ErrUnknownWireType):
		return "unknown_wire_type"
	case errors.Is(err, protocol.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, protocol.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, protocol.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, protocol.ErrNonceNotReceived):
		return "nonce_not_received"
	case errors.Is(err, protocol.ErrHandshakeIncomplete):
		return "handshake_incomplete"
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, protocol.ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
