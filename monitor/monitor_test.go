package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/hook"
)

func waitForClients(t *testing.T, s *Server, expected int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Clients() != expected {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients but got %d", expected, s.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer(t *testing.T) {
	s := New(log.NewTestLogger(t))
	ts := httptest.NewServer(s)
	defer ts.Close()

	// events without clients are discarded
	s.Observe(hook.Event{Function: "Engine.Actor.Tick"})

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer func() { _ = conn.Close() }()
	waitForClients(t, s, 1)

	event := hook.Event{
		Entry:    hook.EntryCallFunction,
		Function: "WillowGame.WillowPlayerController.PlayerTick",
		Object:   "TheWorld.PersistentLevel.WillowPlayerController_0",
		Blocked:  true,
	}
	s.Observe(event)

	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var received hook.Event
	assert.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, event, received)
}

func TestServer_Disconnect(t *testing.T) {
	s := New(log.NewTestLogger(t))
	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer func() { _ = second.Close() }()
	waitForClients(t, s, 2)

	assert.NoError(t, first.Close())
	waitForClients(t, s, 1)

	assert.NoError(t, s.Close())
	assert.Equal(t, 0, s.Clients())
}
