package realtime

import (
	"sync"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/google/uuid"
)

// Router owns the many-to-many relation between connections and
// channels. A channel here is purely a routing label — membership is
// mutated only by explicit join/leave from the connection itself, plus
// the wholesale cleanup when a connection dies.
type Router struct {
	mu      sync.RWMutex
	members map[channel.Key]map[uuid.UUID]Conn
	joined  map[uuid.UUID]map[channel.Key]struct{}
}

func NewRouter() *Router {
	return &Router{
		members: make(map[channel.Key]map[uuid.UUID]Conn),
		joined:  make(map[uuid.UUID]map[channel.Key]struct{}),
	}
}

// Join adds the connection to the channel. Idempotent — joining a
// channel twice is a no-op.
func (r *Router) Join(conn Conn, key channel.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[key]
	if !ok {
		set = make(map[uuid.UUID]Conn)
		r.members[key] = set
	}
	set[conn.ID()] = conn

	keys, ok := r.joined[conn.ID()]
	if !ok {
		keys = make(map[channel.Key]struct{})
		r.joined[conn.ID()] = keys
	}
	keys[key] = struct{}{}
}

// Leave removes the connection from one channel. No-op if it was not a
// member.
func (r *Router) Leave(connID uuid.UUID, key channel.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(connID, key)
}

// DropConn removes the connection from every channel it had joined and
// returns those channels. It runs as part of disconnect cleanup, before
// any further event for that connection can be processed — a dead
// connection must never linger as a channel member.
func (r *Router) DropConn(connID uuid.UUID) []channel.Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]channel.Key, 0, len(r.joined[connID]))
	for key := range r.joined[connID] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.remove(connID, key)
	}
	return keys
}

// remove must be called with the lock held.
func (r *Router) remove(connID uuid.UUID, key channel.Key) {
	if set, ok := r.members[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, key)
		}
	}
	if keys, ok := r.joined[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the channel's current members.
func (r *Router) MembersOf(key channel.Key) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.members[key]))
	for _, c := range r.members[key] {
		conns = append(conns, c)
	}
	return conns
}

// IsMember reports whether the connection has joined the channel.
func (r *Router) IsMember(connID uuid.UUID, key channel.Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[key][connID]
	return ok
}

// broadcast delivers an event to every member of the channel, minus an
// optional excluded connection (uuid.Nil excludes nobody).
func (r *Router) broadcast(key channel.Key, ev Envelope, exclude uuid.UUID) {
	for _, conn := range r.MembersOf(key) {
		if conn.ID() == exclude {
			continue
		}
		conn.Send(ev)
	}
}
