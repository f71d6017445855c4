package realtime_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/campuslive/campuslive/internal/realtime"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// fakeConn records every event delivered to it.
type fakeConn struct {
	id       uuid.UUID
	identity models.Identity

	mu     sync.Mutex
	events []realtime.Envelope
}

func newFakeConn(userID int64, name string, role models.Role) *fakeConn {
	return &fakeConn{
		id:       uuid.New(),
		identity: models.Identity{ID: userID, Name: name, Role: role},
	}
}

func (c *fakeConn) ID() uuid.UUID             { return c.id }
func (c *fakeConn) Identity() models.Identity { return c.identity }

func (c *fakeConn) Send(ev realtime.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) received() []realtime.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Envelope, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) countOf(t realtime.EventType) int {
	n := 0
	for _, ev := range c.received() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// fakeMessageRepo appends messages in memory. Set failErr to make every
// Create fail.
type fakeMessageRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    []models.Message
	failErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (r *fakeMessageRepo) Create(_ context.Context, key channel.Key, senderID int64, text string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}

	msg := models.Message{
		ID:        r.nextID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	id := key.ID
	switch key.Kind {
	case channel.KindRoom:
		msg.RoomID = &id
	case channel.KindBubble:
		msg.BubbleID = &id
	}
	r.nextID++
	r.rows = append(r.rows, msg)
	return &msg, nil
}

func (r *fakeMessageRepo) ListByChannel(_ context.Context, key channel.Key, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range r.rows {
		switch key.Kind {
		case channel.KindRoom:
			if m.RoomID != nil && *m.RoomID == key.ID {
				out = append(out, m)
			}
		case channel.KindBubble:
			if m.BubbleID != nil && *m.BubbleID == key.ID {
				out = append(out, m)
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// fakePresenceRepo records upserts. Set failErr to simulate a store
// outage.
type fakePresenceRepo struct {
	mu      sync.Mutex
	state   map[int64]bool
	writes  int
	failErr error
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{state: make(map[int64]bool)}
}

func (r *fakePresenceRepo) SetOnline(_ context.Context, userID int64, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.state[userID] = online
	r.writes++
	return nil
}

func (r *fakePresenceRepo) Get(_ context.Context, userID int64) (*models.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	online, ok := r.state[userID]
	if !ok {
		return nil, nil
	}
	return &models.PresenceRecord{UserID: userID, IsOnline: online}, nil
}

func (r *fakePresenceRepo) ListOnline(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, online := range r.state {
		if online {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakePresenceRepo) stored(userID int64) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	online, ok := r.state[userID]
	return online, ok
}

// fakeMembershipRepo allows everything unless restricted.
type fakeMembershipRepo struct {
	mu      sync.Mutex
	allowed map[string]bool
	open    bool
}

func newFakeMembershipRepo(open bool) *fakeMembershipRepo {
	return &fakeMembershipRepo{allowed: make(map[string]bool), open: open}
}

func (r *fakeMembershipRepo) allow(key channel.Key, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowed[memberKey(key, userID)] = true
}

func (r *fakeMembershipRepo) IsMember(_ context.Context, key channel.Key, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return true, nil
	}
	return r.allowed[memberKey(key, userID)], nil
}

func memberKey(key channel.Key, userID int64) string {
	return fmt.Sprintf("%s/%d", key, userID)
}

// fakeUserRepo resolves display names.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) add(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = &u
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}
