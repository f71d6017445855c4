package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campuslive/campuslive/internal/api"
	"github.com/campuslive/campuslive/internal/auth"
	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/middleware"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/campuslive/campuslive/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const testSecret = "ws-test-secret"

// memStores is a complete in-memory implementation of the gateway's
// storage collaborators, shared by all connections of one test server.
type memStores struct {
	mu               sync.Mutex
	nextID           int64
	rows             []models.Message
	closedMembership bool
}

func (s *memStores) Create(_ context.Context, key channel.Key, senderID int64, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.Message{ID: s.nextID, SenderID: senderID, Text: text, CreatedAt: time.Now()}
	id := key.ID
	if key.Kind == channel.KindRoom {
		msg.RoomID = &id
	} else {
		msg.BubbleID = &id
	}
	s.rows = append(s.rows, msg)
	return &msg, nil
}

func (s *memStores) ListByChannel(_ context.Context, key channel.Key, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range s.rows {
		if key.Kind == channel.KindRoom && m.RoomID != nil && *m.RoomID == key.ID {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStores) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStores) SetOnline(context.Context, int64, bool) error { return nil }
func (s *memStores) Get(context.Context, int64) (*models.PresenceRecord, error) {
	return nil, nil
}
func (s *memStores) ListOnline(context.Context) ([]int64, error) { return nil, nil }

func (s *memStores) IsMember(context.Context, channel.Key, int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closedMembership, nil
}

func (s *memStores) setClosedMembership(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedMembership = v
}

func (s *memStores) GetByID(_ context.Context, userID int64) (*models.User, error) {
	return &models.User{ID: userID, Name: "user"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStores) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stores := &memStores{}
	gateway := realtime.NewGateway(realtime.Deps{
		Messages:    stores,
		Presence:    stores,
		Memberships: stores,
		Users:       stores,
	}, 0, zap.NewNop())

	router := gin.New()
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testSecret))
	v1.GET("/ws", api.NewWSHandler(gateway, nil, zap.NewNop()).Serve)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		gateway.Shutdown()
		srv.Close()
	})
	return srv, stores
}

func dialAs(t *testing.T, srv *httptest.Server, userID int64, name string) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(userID, name, models.RoleStudent, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial as user %d failed: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent skips frames until one of the wanted type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, want realtime.EventType, timeout time.Duration) realtime.Envelope {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var ev realtime.Envelope
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read waiting for %q: %v", want, err)
		}
		if ev.Type == want {
			return ev
		}
	}
	t.Fatalf("no %q event before timeout", want)
	return realtime.Envelope{}
}

// expectNoEvent fails if a frame of the given type arrives before the
// timeout. Presence broadcasts and other unrelated frames are skipped.
func expectNoEvent(t *testing.T, conn *websocket.Conn, unwanted realtime.EventType, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		conn.SetReadDeadline(deadline)
		var ev realtime.Envelope
		if err := conn.ReadJSON(&ev); err != nil {
			return // nothing more arrived
		}
		if ev.Type == unwanted {
			t.Fatalf("received %+v, want no %q event", ev, unwanted)
		}
	}
}

func TestWebSocketRequiresValidToken(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("handshake without a token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on tokenless handshake, got %v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token=forged", nil)
	if err == nil {
		t.Fatal("handshake with a forged token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on forged token, got %v", resp)
	}
}

func TestRoomChatScenario(t *testing.T) {
	srv, stores := newTestServer(t)

	alice := dialAs(t, srv, 7, "alice")
	readEvent(t, alice, realtime.EventOnlineUsers, time.Second)

	bob := dialAs(t, srv, 9, "bob")
	readEvent(t, bob, realtime.EventOnlineUsers, time.Second)

	// Both connections see the presence list grow to two users.
	ev := readEvent(t, alice, realtime.EventOnlineUsers, time.Second)
	if len(ev.Users) != 2 {
		t.Fatalf("online list after both connect = %v, want 2 users", ev.Users)
	}

	send(t, alice, realtime.Envelope{Type: realtime.EventJoinRoom, Channel: "room:1"})
	send(t, bob, realtime.Envelope{Type: realtime.EventJoinRoom, Channel: "room:1"})
	time.Sleep(100 * time.Millisecond) // wait for joins to be processed

	send(t, alice, realtime.Envelope{Type: realtime.EventMessage, Channel: "room:1", Text: "hi"})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		got := readEvent(t, conn, realtime.EventMessage, time.Second)
		if got.SenderID != 7 || got.Text != "hi" {
			t.Errorf("%s received %+v, want senderId 7 text \"hi\"", name, got)
		}
	}

	if stores.messageCount() != 1 {
		t.Errorf("persisted %d rows, want exactly 1", stores.messageCount())
	}
}

func TestDisconnectCleansUpPresenceAndChannels(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialAs(t, srv, 7, "alice")
	bob := dialAs(t, srv, 9, "bob")

	send(t, alice, realtime.Envelope{Type: realtime.EventJoinRoom, Channel: "room:1"})
	send(t, bob, realtime.Envelope{Type: realtime.EventJoinRoom, Channel: "room:1"})
	time.Sleep(100 * time.Millisecond)

	alice.Close()

	// The next presence broadcast bob sees shows user 7 gone.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ev := readEvent(t, bob, realtime.EventOnlineUsers, time.Until(deadline))
		if !containsID(ev.Users, 7) {
			if !containsID(ev.Users, 9) {
				t.Errorf("online list %v lost user 9 too", ev.Users)
			}
			break
		}
	}

	// A message to the room reaches only the remaining member.
	send(t, bob, realtime.Envelope{Type: realtime.EventMessage, Channel: "room:1", Text: "anyone?"})
	got := readEvent(t, bob, realtime.EventMessage, time.Second)
	if got.SenderID != 9 {
		t.Errorf("remaining member received %+v, want own message", got)
	}
}

func TestRefusedJoinCannotSend(t *testing.T) {
	srv, stores := newTestServer(t)
	stores.setClosedMembership(true)

	outsider := dialAs(t, srv, 7, "alice")

	send(t, outsider, realtime.Envelope{Type: realtime.EventJoinRoom, Channel: "room:1"})
	if ev := readEvent(t, outsider, realtime.EventError, time.Second); ev.Error == "" {
		t.Fatal("join without membership was not refused")
	}

	// The refusal must hold on the send path too, not only at join time.
	send(t, outsider, realtime.Envelope{Type: realtime.EventMessage, Channel: "room:1", Text: "let me in"})
	if ev := readEvent(t, outsider, realtime.EventError, time.Second); ev.Error == "" {
		t.Fatal("send into a refused channel was not rejected")
	}
	if stores.messageCount() != 0 {
		t.Errorf("non-member send persisted %d rows, want 0", stores.messageCount())
	}
}

func TestDocumentSessionOverWebSocket(t *testing.T) {
	srv, stores := newTestServer(t)

	alice := dialAs(t, srv, 7, "alice")
	bob := dialAs(t, srv, 9, "bob")

	send(t, alice, realtime.Envelope{Type: realtime.EventJoinFile, FileID: 42})
	sync := readEvent(t, alice, realtime.EventDocSync, time.Second)
	if sync.FileID != 42 {
		t.Fatalf("doc-sync for file %d, want 42", sync.FileID)
	}

	send(t, bob, realtime.Envelope{Type: realtime.EventJoinFile, FileID: 42})
	readEvent(t, bob, realtime.EventDocSync, time.Second)
	time.Sleep(100 * time.Millisecond)

	delta := []byte(`{"ops":[{"action":"insert","elem":{"id":{"actor":"alice","clock":1},"value":"h","pos":[10]}}]}`)
	send(t, alice, realtime.Envelope{Type: realtime.EventDocUpdate, FileID: 42, Update: delta})

	got := readEvent(t, bob, realtime.EventDocUpdate, time.Second)
	if got.FileID != 42 || string(got.Update) != string(delta) {
		t.Errorf("co-editor received %+v, want the original delta", got)
	}

	// The origin gets no echo for document updates, and no chat row was
	// written.
	expectNoEvent(t, alice, realtime.EventDocUpdate, 300*time.Millisecond)
	if stores.messageCount() != 0 {
		t.Errorf("document traffic persisted %d chat rows, want 0", stores.messageCount())
	}
}

func send(t *testing.T, conn *websocket.Conn, ev realtime.Envelope) {
	t.Helper()
	if err := conn.WriteJSON(ev); err != nil {
		t.Fatalf("write %q: %v", ev.Type, err)
	}
}

func containsID(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
