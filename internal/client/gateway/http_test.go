package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/wire"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestHTTPGateway_Create(t *testing.T) {
	var got wire.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/records", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())
	err := g.Create(context.Background(), wire.Record{
		ID:           "must-be-stripped",
		Name:         "Ana",
		Age:          7,
		RegisteredAt: "2024-01-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Empty(t, got.ID, "store-assigned id must never be submitted")
	assert.Equal(t, "Ana", got.Name)
}

func TestHTTPGateway_Create_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())
	err := g.Create(context.Background(), wire.Record{Name: "Ana"})
	require.Error(t, err)
}

func TestHTTPGateway_UpdateField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/records/r1", r.URL.Path)

		var edit wire.FieldEdit
		require.NoError(t, json.NewDecoder(r.Body).Decode(&edit))
		assert.Equal(t, "school", edit.Field)
		assert.Equal(t, "B", edit.Value)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())
	require.NoError(t, g.UpdateField(context.Background(), "r1", "school", "B"))
}

func TestHTTPGateway_UpdateField_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())
	err := g.UpdateField(context.Background(), "missing", "school", "B")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHTTPGateway_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/records", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]wire.Record{
			{ID: "r1", Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())
	records, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
}

func TestHTTPGateway_PingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewHTTPGateway(url, testLogger())
	err := g.Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrOffline)
}

func TestHTTPGateway_Subscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		msg := wire.SnapshotMessage{
			Type:    wire.MessageSnapshot,
			Records: []wire.Record{{ID: "r1", Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"}},
		}
		require.NoError(t, conn.WriteJSON(msg))

		// keep the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(srv.URL, testLogger())

	var mu sync.Mutex
	var got [][]wire.Record
	cancel, err := g.Subscribe(context.Background(), func(records []wire.Record) {
		mu.Lock()
		got = append(got, records)
		mu.Unlock()
	})
	require.NoError(t, err)
	t.Cleanup(cancel)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Ana", got[0][0].Name)
	mu.Unlock()

	cancel()
}

func TestHTTPGateway_SubscribeOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewHTTPGateway(url, testLogger())
	_, err := g.Subscribe(context.Background(), func([]wire.Record) {})
	assert.ErrorIs(t, err, common.ErrOffline)
}
