package realtime

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// sendBuffer is the per-connection outbound queue depth. A connection that
// cannot drain this many frames has events dropped rather than blocking emitters.
const sendBuffer = 32

// Conn is a live push-channel connection owned by the Registry. The send
// channel is drained by the connection's write loop and closed exactly once,
// by Unregister.
type Conn struct {
	id     string
	userID string
	send   chan []byte
}

func newConn(id, userID string) *Conn {
	return &Conn{id: id, userID: userID, send: make(chan []byte, sendBuffer)}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// trySend queues a frame without blocking; full buffers drop the frame.
func (c *Conn) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
		log.WithField("conn", c.id).Debug("dropping frame for slow connection")
	}
}

// Room returns the personal broadcast room name for a user.
func Room(userID string) string {
	return "user:" + userID
}

// Registry tracks live connections and maps each to its authenticated user.
// It is the only shared mutable structure on the server side of the push path
// and owns its connections exclusively.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	users map[string]map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		users: make(map[string]map[string]*Conn),
	}
}

// Register records the connection and joins it to the user's personal room.
// The caller must have authenticated the user before registering.
func (r *Registry) Register(connID, userID string) *Conn {
	c := newConn(connID, userID)
	r.mu.Lock()
	r.conns[connID] = c
	room, ok := r.users[userID]
	if !ok {
		room = make(map[string]*Conn)
		r.users[userID] = room
	}
	room[connID] = c
	r.mu.Unlock()
	log.WithField("user", userID).WithField("conn", connID).Debug("connection registered")
	return c
}

// Unregister removes the connection and closes its send channel. It is
// idempotent and safe to call on unknown ids.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
		if room, ok := r.users[c.userID]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(r.users, c.userID)
			}
		}
		close(c.send)
	}
	r.mu.Unlock()
	if ok {
		log.WithField("user", c.userID).WithField("conn", connID).Debug("connection unregistered")
	}
}

// Resolve returns the ids of every live connection in the user's room. A user
// with multiple simultaneous sessions has one id per session.
func (r *Registry) Resolve(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.users[userID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// each invokes f under the read lock for every live connection.
func (r *Registry) each(f func(*Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		f(c)
	}
}

// eachInRoom invokes f under the read lock for every connection in the
// user's room.
func (r *Registry) eachInRoom(userID string, f func(*Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.users[userID] {
		f(c)
	}
}
