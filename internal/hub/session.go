package hub

import (
	"bufio"
	"crypto/rsa"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var (
	errSessionClosed = errors.New("session closed")
	errSendFull      = errors.New("send buffer full")
)

// wsSession is one registered websocket connection. Outbound frames go
// through a buffered channel drained by a single write pump, since the
// underlying connection allows one writer at a time.
type wsSession struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *wsSession) enqueue(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return errSendFull
	}
}

func (s *wsSession) shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("hub: write to %s: %v", s.id, err)
				s.hub.Unregister(s.id)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.Unregister(s.id)
				return
			}
		}
	}
}

// readPump discards inbound frames; the dashboard only listens. Its job is
// detecting the close so the session gets unregistered.
func (s *wsSession) readPump() {
	defer s.hub.Unregister(s.id)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("hub: read from %s: %v", s.id, err)
			}
			return
		}
	}
}

// Raw-socket handshake states.
const (
	rawAwaitingKey int32 = iota
	rawReady
	rawFailed
)

// RawSession is one TCP connection. It is registered while still pending;
// only after the key exchange completes does it become eligible for
// broadcast. The registry entry is owned by the hub, the connection's I/O
// lifetime by the accept loop in tcpnotify.
type RawSession struct {
	id    string
	conn  net.Conn
	state atomic.Int32

	mu sync.Mutex // serializes writes
	w  *bufio.Writer

	peerKey    *rsa.PublicKey
	sessionKey []byte
}

func (s *RawSession) ID() string { return s.id }

// Ready reports whether the handshake completed.
func (s *RawSession) Ready() bool { return s.state.Load() == rawReady }

// Fail marks the handshake as failed. The session stays out of every
// broadcast; the connection itself is left to the accept loop.
func (s *RawSession) Fail() { s.state.Store(rawFailed) }

// SessionKey returns the per-session symmetric key, nil until ready.
func (s *RawSession) SessionKey() []byte {
	if !s.Ready() {
		return nil
	}
	return s.sessionKey
}

// WriteLine sends one delimited line to the peer.
func (s *RawSession) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return s.w.Flush()
}
