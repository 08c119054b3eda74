package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/server/ws"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

type fixedHistory [][]byte

func (f fixedHistory) StreamRecent(context.Context, string, int) ([][]byte, error) {
	return f, nil
}

func stepJSON(t *testing.T, step domain.Step, key string) []byte {
	t.Helper()
	b, err := json.Marshal(domain.StepEvent{Step: step, Key: key})
	require.NoError(t, err)
	return b
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.StepEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev domain.StepEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubReplaysHistoryThenRelaysLiveEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := &chanBus{ch: make(chan []byte, 8)}
	history := fixedHistory{stepJSON(t, domain.StepOracleCreated, "0xold")}
	hub := ws.NewHub(bus, history, ws.Config{Channel: "steps", Stream: "steps:history"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "0xold", readEvent(t, conn).Key)

	// The write pump starts after registration, so the client is
	// registered once the history frame arrives.
	require.NoError(t, bus.Publish(ctx, "steps", stepJSON(t, domain.StepMarketCreated, "0xnew")))
	ev := readEvent(t, conn)
	assert.Equal(t, domain.StepMarketCreated, ev.Step)
	assert.Equal(t, "0xnew", ev.Key)
}

func TestHubAppliesClientFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := &chanBus{ch: make(chan []byte, 8)}
	hub := ws.NewHub(bus, nil, ws.Config{Channel: "steps"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"steps": []string{"shares_bought"}}))
	// Give the read pump time to apply the filter.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "steps", stepJSON(t, domain.StepMarketFunded, "0xa")))
	require.NoError(t, bus.Publish(ctx, "steps", stepJSON(t, domain.StepSharesBought, "0xb")))

	assert.Equal(t, "0xb", readEvent(t, conn).Key)
}
