// Package realtime is the live layer of the platform: it admits one
// websocket per client, tracks presence, routes chat and typing events
// to room and bubble scopes, and merges collaborative edits through
// per-artifact CRDT sessions.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/campuslive/campuslive/internal/repository"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// opTimeout bounds the persistence work behind a single client event.
const opTimeout = 5 * time.Second

// handlerFunc processes one inbound event for one connection.
type handlerFunc func(c *Client, ev Envelope)

// Gateway wires the realtime components together and dispatches inbound
// events to them. One Gateway per process; all of its state is held by
// the injected components, so tests build as many isolated gateways as
// they like.
type Gateway struct {
	registry *Registry
	router   *Router
	presence *PresenceTracker
	chat     *ChatService
	typing   *TypingRelay
	docs     *DocumentManager
	logger   *zap.Logger

	// handlers maps event kind to handler — the dispatch table is
	// explicit, not a string-matching convention.
	handlers map[EventType]handlerFunc

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// Deps carries the storage collaborators the gateway persists through.
type Deps struct {
	Messages    repository.MessageRepository
	Presence    repository.PresenceRepository
	Memberships repository.MembershipRepository
	Users       repository.UserRepository
}

// NewGateway assembles registry, presence tracker, router, and the
// three event services around the given stores.
func NewGateway(deps Deps, docTTL time.Duration, logger *zap.Logger) *Gateway {
	registry := NewRegistry(logger)
	router := NewRouter()

	gw := &Gateway{
		registry: registry,
		router:   router,
		presence: NewPresenceTracker(registry, deps.Presence, logger),
		chat:     NewChatService(router, deps.Messages, deps.Memberships, deps.Users, logger),
		typing:   NewTypingRelay(router),
		docs:     NewDocumentManager(router, docTTL, logger),
		logger:   logger,
		clients:  make(map[*Client]struct{}),
	}
	registry.OnTransition(gw.presence.OnPresenceChanged)

	gw.handlers = map[EventType]handlerFunc{
		EventJoinRoom:   gw.handleJoinRoom,
		EventLeaveRoom:  gw.handleLeaveRoom,
		EventJoinFile:   gw.handleJoinFile,
		EventLeaveFile:  gw.handleLeaveFile,
		EventMessage:    gw.handleMessage,
		EventTyping:     gw.handleTyping,
		EventStopTyping: gw.handleStopTyping,
		EventDocUpdate:  gw.handleDocUpdate,
	}
	return gw
}

// Registry exposes the connection registry for read models (the REST
// online-users endpoint).
func (g *Gateway) Registry() *Registry { return g.registry }

// Admit registers a connection for the verified identity and starts its
// pumps. The identity must already have passed credential verification
// — the gateway trusts nothing else.
func (g *Gateway) Admit(wsConn *websocket.Conn, identity models.Identity) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("gateway is shut down")
	}
	client := newClient(wsConn, identity, g)
	g.clients[client] = struct{}{}
	g.mu.Unlock()

	if err := g.registry.Register(client); err != nil {
		g.mu.Lock()
		delete(g.clients, client)
		g.mu.Unlock()
		return fmt.Errorf("admit connection: %w", err)
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// disconnect runs the full cleanup for a dead connection, in one pass:
// out of every channel first, then out of the registry (which fires the
// presence transition and broadcast). By the time this returns, no
// later event can reach the connection through any route.
func (g *Gateway) disconnect(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	g.mu.Unlock()

	left := g.router.DropConn(c.ID())
	g.registry.Deregister(c.ID())

	for _, key := range left {
		if key.Kind == channel.KindDoc {
			g.docs.NoteIdle(key.ID)
		}
	}

	close(c.done)
	c.conn.Close()
}

// dispatch routes one inbound event. Unknown kinds are answered with an
// error event to the origin only; nothing a single connection sends can
// disturb another connection's state.
func (g *Gateway) dispatch(c *Client, ev Envelope) {
	handler, ok := g.handlers[ev.Type]
	if !ok {
		c.Send(errorEvent(fmt.Sprintf("unknown event type %q", ev.Type)))
		return
	}
	handler(c, ev)
}

func (g *Gateway) handleJoinRoom(c *Client, ev Envelope) {
	key, err := channel.ParseChat(ev.Channel)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	ok, err := g.chat.Authorize(ctx, c.Identity(), key)
	if err != nil {
		g.logger.Error("join authorization failed", zap.Error(err))
		c.Send(errorEvent("could not verify channel membership"))
		return
	}
	if !ok {
		c.Send(errorEvent(fmt.Sprintf("not a member of %s", key)))
		return
	}

	g.router.Join(c, key)
}

func (g *Gateway) handleLeaveRoom(c *Client, ev Envelope) {
	key, err := channel.ParseChat(ev.Channel)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}
	g.router.Leave(c.ID(), key)
}

func (g *Gateway) handleJoinFile(c *Client, ev Envelope) {
	snapshot, err := g.docs.Join(c, ev.FileID)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}
	c.Send(Envelope{Type: EventDocSync, FileID: ev.FileID, Update: snapshot})
}

func (g *Gateway) handleLeaveFile(c *Client, ev Envelope) {
	if ev.FileID <= 0 {
		c.Send(errorEvent(fmt.Sprintf("invalid file id %d", ev.FileID)))
		return
	}
	g.docs.Leave(c.ID(), ev.FileID)
}

func (g *Gateway) handleMessage(c *Client, ev Envelope) {
	key, err := channel.ParseChat(ev.Channel)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}

	// Sending requires a prior successful join — the join is where the
	// membership check happened, and a connection that was refused there
	// must not reach the channel through the send path instead.
	if !g.router.IsMember(c.ID(), key) {
		c.Send(errorEvent(fmt.Sprintf("not a member of %s", key)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := g.chat.Send(ctx, c.Identity(), key, ev.Text); err != nil {
		g.logger.Error("message send failed",
			zap.String("channel", key.String()),
			zap.Int64("sender", c.Identity().ID),
			zap.Error(err),
		)
		c.Send(errorEvent("message could not be delivered"))
	}
}

func (g *Gateway) handleTyping(c *Client, ev Envelope) {
	key, err := channel.ParseChat(ev.Channel)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}
	// Dropped silently rather than errored: a typing signal racing the
	// sender's own leave is normal, and the relay is best-effort anyway.
	if !g.router.IsMember(c.ID(), key) {
		return
	}
	name := ev.SenderName
	if name == "" {
		name = c.Identity().Name
	}
	g.typing.Typing(c.ID(), key, name)
}

func (g *Gateway) handleStopTyping(c *Client, ev Envelope) {
	key, err := channel.ParseChat(ev.Channel)
	if err != nil {
		c.Send(errorEvent(err.Error()))
		return
	}
	if !g.router.IsMember(c.ID(), key) {
		return
	}
	g.typing.StopTyping(c.ID(), key)
}

func (g *Gateway) handleDocUpdate(c *Client, ev Envelope) {
	if !g.router.IsMember(c.ID(), channel.Doc(ev.FileID)) {
		c.Send(errorEvent(fmt.Sprintf("not joined to document %d", ev.FileID)))
		return
	}
	if err := g.docs.ApplyUpdate(ev.FileID, ev.Update, c.ID()); err != nil {
		c.Send(errorEvent("document update rejected"))
	}
}

// Shutdown closes every live connection and stops the document janitor.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		g.disconnect(c)
	}
	g.docs.Stop()
}
