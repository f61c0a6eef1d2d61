package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
)

func startManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()

	m := NewManager(nil, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = m.Shutdown(context.Background())
	})
	return m
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event, ok := <-client.EventChan:
		require.True(t, ok, "client channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_ConnectDisconnect(t *testing.T) {
	m := startManager(t)

	client, err := m.Connect("user-a")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client.ID, "sse-"))
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-client.Done
	assert.False(t, open)
}

func TestManager_EmitBroadcastsToAll(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect("user-a")
	require.NoError(t, err)
	b, err := m.Connect("user-b")
	require.NoError(t, err)

	m.Emit(NewRockCreatedEvent(dto.Rock{ID: 1, Name: "Basalt"}))

	for _, client := range []*Client{a, b} {
		event := receive(t, client)
		assert.Equal(t, EventRockCreated, event.Type)
		data, ok := event.Data.(RockEventData)
		require.True(t, ok)
		assert.Equal(t, "Basalt", data.Rock.Name)
	}
}

func TestManager_EmitToUserFilters(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect("user-a")
	require.NoError(t, err)
	b, err := m.Connect("user-b")
	require.NoError(t, err)

	m.EmitToUser("user-b", NewRockDeletedEvent(3, "user-b"))
	m.Emit(NewRockDeletedEvent(4, "user-a"))

	// user-a only sees the broadcast.
	event := receive(t, a)
	assert.Equal(t, int64(4), event.Data.(RockDeletedEventData).RockID)

	event = receive(t, b)
	assert.Equal(t, int64(3), event.Data.(RockDeletedEventData).RockID)
	event = receive(t, b)
	assert.Equal(t, int64(4), event.Data.(RockDeletedEventData).RockID)
}

func TestManager_EmitIgnoresForeignValues(t *testing.T) {
	m := startManager(t)
	client, err := m.Connect("user-a")
	require.NoError(t, err)

	m.Emit("not an event")
	m.Emit(NewRockDeletedEvent(1, "user-a"))

	assert.Equal(t, EventRockDeleted, receive(t, client).Type)
}

func TestManager_Heartbeat(t *testing.T) {
	m := startManager(t, WithHeartbeatInterval(20*time.Millisecond))
	client, err := m.Connect("user-a")
	require.NoError(t, err)

	event := receive(t, client)
	assert.Equal(t, EventHeartbeat, event.Type)
	assert.IsType(t, HeartbeatEventData{}, event.Data)
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m := NewManager(nil)
	m.Start(context.Background())

	client, err := m.Connect("user-a")
	require.NoError(t, err)

	m.Emit(NewRockDeletedEvent(1, "user-a"))
	require.NoError(t, m.Shutdown(context.Background()))

	// The queued event is delivered before the channel closes.
	event, ok := <-client.EventChan
	require.True(t, ok)
	assert.Equal(t, EventRockDeleted, event.Type)
	_, ok = <-client.EventChan
	assert.False(t, ok)

	assert.Equal(t, 0, m.ClientCount())

	// Emitting after shutdown is a no-op.
	m.Emit(NewRockDeletedEvent(2, "user-a"))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_Clients(t *testing.T) {
	m := startManager(t)
	for _, user := range []string{"user-a", "user-b"} {
		_, err := m.Connect(user)
		require.NoError(t, err)
	}

	users := map[string]bool{}
	for c := range m.Clients() {
		users[c.UserID] = true
	}
	assert.Equal(t, map[string]bool{"user-a": true, "user-b": true}, users)
}

func testAuthenticator(_ context.Context, token string) (string, error) {
	if token == "good-token" {
		return "user-a", nil
	}
	return "", errors.New("bad token")
}

func TestHandler_RejectsMissingOrBadToken(t *testing.T) {
	m := startManager(t)
	h := NewHandler(m, testAuthenticator, nil)

	for _, target := range []string{"/events", "/events?token=nope"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "UNAUTHORIZED", body["code"])
	}
	assert.Equal(t, 0, m.ClientCount())
}

func TestHandler_RejectsPost(t *testing.T) {
	h := NewHandler(startManager(t), testAuthenticator, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, testAuthenticator, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer good-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.Emit(NewRockCreatedEvent(dto.Rock{ID: 9, Name: "Obsidian"}))

	name, data := readEvent(t, reader)
	assert.Equal(t, "rock.created", name)

	var payload struct {
		Type string `json:"type"`
		Data struct {
			Rock dto.Rock `json:"rock"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.Equal(t, "rock.created", payload.Type)
	assert.Equal(t, int64(9), payload.Data.Rock.ID)
	assert.Equal(t, "Obsidian", payload.Data.Rock.Name)
}

func TestHandler_AcceptsQueryToken(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, testAuthenticator, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?token=good-token", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	name, _ := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "connected", name)
}

// readEvent reads one "event:"/"data:" frame.
func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestRequestToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events?token=q", nil)
	assert.Equal(t, "q", requestToken(req))

	req.Header.Set("Authorization", "bearer h")
	assert.Equal(t, "h", requestToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", requestToken(req))
}
