package realtime_test

import (
	"errors"
	"testing"

	"github.com/campuslive/campuslive/internal/models"
	"github.com/campuslive/campuslive/internal/realtime"
)

func TestPresenceTransitionPersistsAndBroadcasts(t *testing.T) {
	registry := realtime.NewRegistry(testLogger())
	repo := newFakePresenceRepo()
	tracker := realtime.NewPresenceTracker(registry, repo, testLogger())
	registry.OnTransition(tracker.OnPresenceChanged)

	c1 := newFakeConn(7, "ana", models.RoleStudent)
	c2 := newFakeConn(9, "bo", models.RoleStudent)

	mustRegister(t, registry, c1)
	if online, ok := repo.stored(7); !ok || !online {
		t.Errorf("presence store after register = (%v, %v), want online record", online, ok)
	}

	mustRegister(t, registry, c2)

	// c1 saw the broadcast for its own registration and for c2's.
	if got := c1.countOf(realtime.EventOnlineUsers); got != 2 {
		t.Errorf("first connection received %d online-users broadcasts, want 2", got)
	}

	lastList := lastOnlineUsers(t, c1)
	if len(lastList) != 2 {
		t.Errorf("final online list has %d users, want 2 (got %v)", len(lastList), lastList)
	}

	registry.Deregister(c1.ID())
	if online, ok := repo.stored(7); !ok || online {
		t.Errorf("presence store after last disconnect = (%v, %v), want offline record", online, ok)
	}

	// The remaining connection learns that user 7 left.
	lastList = lastOnlineUsers(t, c2)
	for _, id := range lastList {
		if id == 7 {
			t.Errorf("online list still contains user 7 after disconnect: %v", lastList)
		}
	}
}

func TestPresenceStoreFailureDoesNotBlockBroadcast(t *testing.T) {
	registry := realtime.NewRegistry(testLogger())
	repo := newFakePresenceRepo()
	repo.failErr = errors.New("redis down")
	tracker := realtime.NewPresenceTracker(registry, repo, testLogger())
	registry.OnTransition(tracker.OnPresenceChanged)

	c := newFakeConn(7, "ana", models.RoleStudent)
	mustRegister(t, registry, c)

	// Presence is eventually consistent: the write failed, the
	// broadcast still happened.
	if got := c.countOf(realtime.EventOnlineUsers); got != 1 {
		t.Errorf("received %d online-users broadcasts despite store failure, want 1", got)
	}
	if got := lastOnlineUsers(t, c); len(got) != 1 || got[0] != 7 {
		t.Errorf("broadcast list = %v, want [7]", got)
	}
}

func lastOnlineUsers(t *testing.T, c *fakeConn) []int64 {
	t.Helper()
	events := c.received()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == realtime.EventOnlineUsers {
			return events[i].Users
		}
	}
	t.Fatal("no online-users broadcast received")
	return nil
}
