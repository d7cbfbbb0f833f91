// Package tcpnotify runs the raw-socket notification listener. The protocol
// is line-delimited UTF-8 text:
//
//	server -> client  base64 PKCS#1 server public key
//	client -> server  base64 PKCS#1 client public key
//	server -> client  base64 RSA-OAEP wrapped AES-256 session key
//	server -> client  base64 AES-GCM event envelope, one line per event
//
// A connection that never completes the key exchange stays open but is
// excluded from every broadcast until the peer hangs up.
package tcpnotify

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"clinic-server/internal/codec"
	"clinic-server/internal/hub"
)

const DefaultHandshakeTimeout = 30 * time.Second

type Option func(*Server)

// WithHandshakeTimeout bounds the wait for the peer's public key line.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

type Server struct {
	addr             string
	hub              *hub.Hub
	codec            *codec.Codec
	handshakeTimeout time.Duration
	ln               net.Listener
}

func New(addr string, h *hub.Hub, c *codec.Codec, opts ...Option) *Server {
	s := &Server{
		addr:             addr,
		hub:              h,
		codec:            c,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Infof("tcpnotify: listening on %s", ln.Addr())
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Errorf("tcpnotify: accept: %v", err)
			}
			return
		}
		go s.handle(conn)
	}
}

// handle owns the connection's I/O lifetime: one goroutine per accepted
// connection, blocked on reads until the peer goes away.
func (s *Server) handle(conn net.Conn) {
	session := s.hub.RegisterRawSession(conn)
	defer func() {
		s.hub.Unregister(session.ID())
		conn.Close()
	}()

	if err := s.handshake(conn, session); err != nil {
		log.Warnf("tcpnotify: handshake with %s: %v", session.ID(), err)
		session.Fail()
		s.hub.Unregister(session.ID())
		// the connection stays open and drained; the session just never
		// receives a broadcast
		drain(conn)
		return
	}

	welcome, err := hub.Connected("Connection established. Notifications will begin arriving shortly.").Marshal()
	if err == nil {
		if line, err := codec.Seal(session.SessionKey(), welcome); err == nil {
			if err := session.WriteLine(line); err != nil {
				log.Warnf("tcpnotify: welcome to %s: %v", session.ID(), err)
				return
			}
		}
	}

	drain(conn)
}

// handshake walks the session from AwaitingPeerKey to Ready: send our key,
// read the peer's within the deadline, verify it, then wrap and send the
// session key.
func (s *Server) handshake(conn net.Conn, session *hub.RawSession) error {
	if err := session.WriteLine(s.codec.PublicKeyText()); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Time{})

	peerKey, err := codec.ParsePublicKey(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	if err := codec.VerifyPeerKey(peerKey); err != nil {
		return err
	}

	sessionKey, err := codec.NewSessionKey()
	if err != nil {
		return err
	}
	wrapped, err := codec.WrapKey(sessionKey, peerKey)
	if err != nil {
		return err
	}
	if err := session.WriteLine(wrapped); err != nil {
		return err
	}

	s.hub.CompleteHandshake(session, peerKey, sessionKey)
	return nil
}

// drain blocks until the peer closes, so the deferred unregister fires on
// disconnect.
func drain(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Time{})
	_, _ = io.Copy(io.Discard, conn)
}
