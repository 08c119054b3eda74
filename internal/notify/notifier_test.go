package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/notify"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersSteps(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := notify.NewNotifier([]notify.Sender{s}, []string{"market_created"}, discard())
	ctx := context.Background()

	require.NoError(t, n.StepCompleted(ctx, domain.StepEvent{Step: domain.StepOracleCreated, Key: "0x1"}))
	require.NoError(t, n.StepCompleted(ctx, domain.StepEvent{Step: domain.StepMarketCreated, Key: "0x2"}))
	require.NoError(t, n.StepCompleted(ctx, domain.StepEvent{Step: domain.StepFailed, Error: "boom"}))

	assert.Equal(t, []string{"market created", "step failed"}, s.titles)
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := notify.NewNotifier([]notify.Sender{bad, good}, nil, discard())

	err := n.StepCompleted(context.Background(), domain.StepEvent{Step: domain.StepMarketFunded})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestRenderSortsDetail(t *testing.T) {
	title, body := notify.Render(domain.StepEvent{
		Step:    domain.StepSharesBought,
		Key:     "0xmarket",
		TxHash:  "0xtx",
		Detail:  map[string]any{"outcome": 1, "cost": "10"},
		Elapsed: 2 * time.Second,
	})
	assert.Equal(t, "shares bought", title)
	assert.Equal(t, "key: 0xmarket\ntx: 0xtx\ncost: 10\noutcome: 1\nelapsed: 2s", body)
}

func TestTelegramSenderPostsToBotAPI(t *testing.T) {
	var (
		path string
		got  map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := notify.NewTelegramSender(srv.URL, "tok", "42")
	require.NoError(t, s.Send(context.Background(), "title", "body"))

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*title*\nbody", got["text"])
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := notify.NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}
