package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxvn1/GxvnsChatApp/internal/identity"
	"github.com/gxvn1/GxvnsChatApp/internal/presence"
	"github.com/gxvn1/GxvnsChatApp/internal/protocol"
)

const readTimeout = 2 * time.Second

// testRouter wires a Router behind a plain websocket endpoint that mimics the
// session loop: decode, HandleFrame, Disconnect on read error.
func testRouter(t *testing.T, store identity.Store) (*Router, func() *ws.Conn) {
	t.Helper()

	clock := clockwork.NewRealClock()
	router := NewRouter(store, presence.NewMemoryStore(clock), clock)
	t.Cleanup(router.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess := NewSession(conn, clock)
		go func() {
			defer router.Disconnect(context.Background(), sess)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				env, err := protocol.Decode(data)
				if err != nil {
					continue
				}
				router.HandleFrame(context.Background(), sess, env)
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return router, dial
}

func send(t *testing.T, conn *ws.Conn, env map[string]any) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
}

func recv(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// recvType reads frames until one of the wanted type arrives, skipping
// presence announcements from unrelated sessions.
func recvType(t *testing.T, conn *ws.Conn, typ string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		env := recv(t, conn)
		if env["type"] == typ {
			return env
		}
	}
	t.Fatalf("no %q frame before deadline", typ)
	return nil
}

func assertSilent(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", data)
	}
	assert.True(t, strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline"))
}

// login registers (best effort) and logs a user in over conn.
func login(t *testing.T, store identity.Store, conn *ws.Conn, username string) {
	t.Helper()
	_ = store.Create(context.Background(), username, "pw")
	send(t, conn, map[string]any{"type": "login", "username": username, "password": "pw"})
	resp := recvType(t, conn, "login_response")
	require.Equal(t, true, resp["success"], "login failed: %v", resp)
}

func TestLoginResponses(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)
	conn := dial()

	send(t, conn, map[string]any{"type": "register", "username": "alice", "password": "pw"})
	resp := recvType(t, conn, "register_response")
	assert.Equal(t, true, resp["success"])

	send(t, conn, map[string]any{"type": "register", "username": "alice", "password": "pw"})
	resp = recvType(t, conn, "register_response")
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Username already exists", resp["message"])

	send(t, conn, map[string]any{"type": "login", "username": "alice", "password": "wrong"})
	resp = recvType(t, conn, "login_response")
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Invalid username or password", resp["message"])

	// Unknown user gets the exact same message as a wrong password.
	send(t, conn, map[string]any{"type": "login", "username": "ghost", "password": "pw"})
	resp = recvType(t, conn, "login_response")
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Invalid username or password", resp["message"])

	send(t, conn, map[string]any{"type": "login", "username": "alice", "password": "pw"})
	resp = recvType(t, conn, "login_response")
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "alice", resp["username"])
}

func TestLoginSupersedesPriorSession(t *testing.T) {
	store := identity.NewMemoryStore()
	router, dial := testRouter(t, store)

	first := dial()
	login(t, store, first, "alice")

	second := dial()
	login(t, store, second, "alice")

	// The first channel is closed by the router.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// Exactly one session remains and it is the second one: a direct
	// message lands on the new channel.
	assert.Equal(t, 1, router.SessionCount())

	sender := dial()
	login(t, store, sender, "bob")
	send(t, sender, map[string]any{"type": "message", "to": "alice", "content": "hi"})

	env := recvType(t, second, "message")
	assert.Equal(t, "hi", env["content"])
	assert.Equal(t, "bob", env["username"])
}

func TestDirectMessageToAbsentUserIsSilentlyDropped(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	sender := dial()
	login(t, store, sender, "alice")

	send(t, sender, map[string]any{"type": "message", "to": "nobody", "content": "hello?"})
	assertSilent(t, sender)
}

func TestGroupMessageToUnknownGroup(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	sender := dial()
	login(t, store, sender, "alice")
	other := dial()
	login(t, store, other, "bob")
	recvType(t, sender, "user_online") // bob's announcement

	send(t, sender, map[string]any{"type": "message", "group": "ghosts", "content": "anyone?"})

	notice := recvType(t, sender, "system")
	assert.Contains(t, notice["content"], "not found")
	assertSilent(t, sender)
	assertSilent(t, other)
}

func TestCreateGroupAndGroupRouting(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	alice := dial()
	login(t, store, alice, "alice")
	bob := dial()
	login(t, store, bob, "bob")
	carol := dial()
	login(t, store, carol, "carol")

	send(t, alice, map[string]any{"type": "create_group", "group_name": "devs", "members": []string{"alice", "bob"}})

	// Creator is a member, so both alice and bob see the announcement.
	created := recvType(t, alice, "group_created")
	assert.Equal(t, "devs", created["group_name"])
	assert.Equal(t, "alice", created["creator"])
	created = recvType(t, bob, "group_created")
	assert.Equal(t, []any{"alice", "bob"}, created["members"])

	// Duplicate creation is rejected and membership stays {alice, bob}.
	send(t, carol, map[string]any{"type": "create_group", "group_name": "devs", "members": []string{"carol"}})
	notice := recvType(t, carol, "system")
	assert.Contains(t, notice["content"], "already exists")

	send(t, alice, map[string]any{"type": "message", "group": "devs", "content": "standup"})
	env := recvType(t, bob, "message")
	assert.Equal(t, "standup", env["content"])
	assert.Equal(t, "devs", env["group"])
	assertSilent(t, carol)
	assertSilent(t, alice)
}

func TestBroadcastExcludesSender(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	a := dial()
	login(t, store, a, "a")
	b := dial()
	login(t, store, b, "b")
	c := dial()
	login(t, store, c, "c")

	// Drain the presence announcements a saw for b and c.
	recvType(t, a, "user_online")
	recvType(t, a, "user_online")

	send(t, a, map[string]any{"type": "message", "content": "hi"})

	for _, conn := range []*ws.Conn{b, c} {
		env := recvType(t, conn, "message")
		assert.Equal(t, "hi", env["content"])
		assert.Equal(t, "a", env["username"])
		assert.NotEmpty(t, env["timestamp"])
	}
	assertSilent(t, a)
}

func TestBroadcastSkipsDisconnectedMidFanout(t *testing.T) {
	store := identity.NewMemoryStore()
	router, dial := testRouter(t, store)

	a := dial()
	login(t, store, a, "a")
	b := dial()
	login(t, store, b, "b")
	c := dial()
	login(t, store, c, "c")

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return router.SessionCount() == 2 }, readTimeout, 10*time.Millisecond)

	send(t, a, map[string]any{"type": "message", "content": "still here?"})

	env := recvType(t, c, "message")
	assert.Equal(t, "still here?", env["content"])
	assert.Equal(t, 2, router.SessionCount())
}

func TestSignalingPassThroughPreservesOpaqueFields(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	caller := dial()
	login(t, store, caller, "alice")
	callee := dial()
	login(t, store, callee, "bob")

	frame := `{"type":"call_request","to":"bob","username":"alice","sdp":"v=0","candidates":[1,2,3]}`
	require.NoError(t, caller.WriteMessage(ws.TextMessage, []byte(frame)))

	require.NoError(t, callee.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		_, data, err := callee.ReadMessage()
		require.NoError(t, err)
		var env map[string]any
		require.NoError(t, json.Unmarshal(data, &env))
		if env["type"] != "call_request" {
			continue
		}
		// Byte-identical forward, opaque fields included.
		assert.JSONEq(t, frame, string(data))
		break
	}
}

func TestAddFriendNotifiesBothSides(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	alice := dial()
	login(t, store, alice, "alice")
	bob := dial()
	login(t, store, bob, "bob")

	send(t, alice, map[string]any{"type": "add_friend", "friend": "bob"})

	added := recvType(t, alice, "friend_added")
	assert.Equal(t, "bob", added["friend"])
	request := recvType(t, bob, "friend_request")
	assert.Equal(t, "alice", request["from"])

	// The relation is symmetric in the store.
	friends, err := store.FriendsOf(context.Background(), "bob")
	require.NoError(t, err)
	assert.Contains(t, friends, "alice")
}

func TestAddFriendUnknownTargetFailsSilently(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	alice := dial()
	login(t, store, alice, "alice")

	send(t, alice, map[string]any{"type": "add_friend", "friend": "ghost"})
	assertSilent(t, alice)
}

func TestDisconnectBroadcastsUserOffline(t *testing.T) {
	store := identity.NewMemoryStore()
	router, dial := testRouter(t, store)

	alice := dial()
	login(t, store, alice, "alice")
	bob := dial()
	login(t, store, bob, "bob")
	recvType(t, alice, "user_online")

	require.NoError(t, bob.Close())

	offline := recvType(t, alice, "user_offline")
	assert.Equal(t, "bob", offline["username"])
	require.Eventually(t, func() bool { return router.SessionCount() == 1 }, readTimeout, 10*time.Millisecond)
}

func TestUnrecognizedTypeIsDroppedWithoutClosingSession(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	conn := dial()
	login(t, store, conn, "alice")
	other := dial()
	login(t, store, other, "bob")

	send(t, conn, map[string]any{"type": "teleport", "content": "beam me up"})

	// Session still works afterwards.
	send(t, conn, map[string]any{"type": "message", "to": "bob", "content": "still alive"})
	env := recvType(t, other, "message")
	assert.Equal(t, "still alive", env["content"])
}

func TestMessageCarriesServerStampedIdentity(t *testing.T) {
	store := identity.NewMemoryStore()
	_, dial := testRouter(t, store)

	sender := dial()
	login(t, store, sender, "alice")
	target := dial()
	login(t, store, target, "bob")

	// Forged sender fields must be overwritten from the session.
	send(t, sender, map[string]any{
		"type": "message", "to": "bob", "content": "hi",
		"username": "mallory", "timestamp": "1999-01-01T00:00:00Z",
	})

	msg := recvType(t, target, "message")
	assert.Equal(t, "alice", msg["username"])
	assert.NotEqual(t, "1999-01-01T00:00:00Z", msg["timestamp"])
	assert.NotEmpty(t, msg["timestamp"])
}
