// Package hub fans out appointment events to every live session: plaintext
// JSON frames to websocket sessions, per-session encrypted lines to TCP
// sessions. One failing recipient never blocks delivery to the rest.
package hub

import (
	"bufio"
	"crypto/rsa"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"

	"clinic-server/internal/codec"
)

const welcomeMessage = "Connection established. Notifications will begin arriving shortly."

// Hub owns the two session registries. Construct one per process and inject
// it into the listeners; there is no package-level instance.
type Hub struct {
	ws  sync.Map // session id -> *wsSession
	raw sync.Map // session id -> *RawSession
}

func New() *Hub {
	return &Hub{}
}

// RegisterWebSession registers a websocket connection, starts its pumps and
// sends the connected welcome to that session only. Returns the session id.
func (h *Hub) RegisterWebSession(conn *websocket.Conn) string {
	s := &wsSession{
		id:   "ws-" + uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.ws.Store(s.id, s)
	go s.writePump()
	go s.readPump()

	if msg, err := Connected(welcomeMessage).Marshal(); err == nil {
		if err := s.enqueue(msg); err != nil {
			log.Warnf("hub: welcome to %s: %v", s.id, err)
		}
	}
	log.Infof("hub: session %s connected", s.id)
	return s.id
}

// RegisterRawSession registers a TCP connection in pending state. The
// session receives nothing until CompleteHandshake.
func (h *Hub) RegisterRawSession(conn net.Conn) *RawSession {
	s := &RawSession{
		id:   "tcp-" + uuid.NewString(),
		conn: conn,
		w:    bufio.NewWriter(conn),
	}
	h.raw.Store(s.id, s)
	log.Infof("hub: session %s connected", s.id)
	return s
}

// CompleteHandshake stores the peer key and the per-session symmetric key
// and makes the session eligible for broadcast.
func (h *Hub) CompleteHandshake(s *RawSession, peerKey *rsa.PublicKey, sessionKey []byte) {
	s.peerKey = peerKey
	s.sessionKey = sessionKey
	s.state.Store(rawReady)
	log.Infof("hub: session %s handshake complete", s.id)
}

// Unregister removes a session from whichever registry holds it. Idempotent;
// unknown ids are a no-op.
func (h *Hub) Unregister(id string) {
	if v, ok := h.ws.LoadAndDelete(id); ok {
		v.(*wsSession).shutdown()
		log.Infof("hub: session %s disconnected", id)
		return
	}
	if _, ok := h.raw.LoadAndDelete(id); ok {
		log.Infof("hub: session %s disconnected", id)
	}
}

// Publish serializes the event once and delivers it to every live session.
// Per-session failures are logged and unregister that session only; there is
// no retry and no per-publish ordering across sessions.
func (h *Hub) Publish(ev Event) {
	msg, err := ev.Marshal()
	if err != nil {
		log.Errorf("hub: marshal %s event: %v", ev.Action, err)
		return
	}

	h.ws.Range(func(_, v any) bool {
		s := v.(*wsSession)
		if err := s.enqueue(msg); err != nil {
			log.Warnf("hub: send to %s: %v", s.id, err)
			h.Unregister(s.id)
		}
		return true
	})

	h.raw.Range(func(_, v any) bool {
		s := v.(*RawSession)
		if !s.Ready() {
			return true
		}
		line, err := codec.Seal(s.sessionKey, msg)
		if err != nil {
			log.Warnf("hub: encrypt for %s: %v", s.id, err)
			h.Unregister(s.id)
			return true
		}
		if err := s.WriteLine(line); err != nil {
			log.Warnf("hub: send to %s: %v", s.id, err)
			h.Unregister(s.id)
			s.conn.Close()
		}
		return true
	})
}

// WebSessionCount returns the number of registered websocket sessions.
func (h *Hub) WebSessionCount() int { return mapLen(&h.ws) }

// RawSessionCount returns the number of registered TCP sessions, pending
// ones included.
func (h *Hub) RawSessionCount() int { return mapLen(&h.raw) }

// Close unregisters every session. TCP connections are closed by their
// accept loops; websocket pumps close their own connections on shutdown.
func (h *Hub) Close() {
	h.ws.Range(func(k, _ any) bool {
		h.Unregister(k.(string))
		return true
	})
	h.raw.Range(func(k, _ any) bool {
		h.Unregister(k.(string))
		return true
	})
}

func mapLen(m *sync.Map) int {
	n := 0
	m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
