package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/homework"
	"hwbot/internal/poller"
	logx "hwbot/pkg/logx"
	"hwbot/pkg/systemd"
)

type fakeBotAPI struct {
	mu    sync.Mutex
	texts []string
	chats []string
}

func (b *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var params map[string]any
	_ = json.Unmarshal(body, &params)

	b.mu.Lock()
	if s, ok := params["text"].(string); ok {
		b.texts = append(b.texts, s)
	}
	if s, ok := params["chat_id"].(string); ok {
		b.chats = append(b.chats, s)
	}
	n := len(b.texts)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
		"result": map[string]any{
			"message_id": n,
			"date":       0,
			"chat":       map[string]any{"id": 42, "type": "private"},
			"text":       params["text"],
		},
	})
}

func (b *fakeBotAPI) sent() ([]string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...), append([]string(nil), b.chats...)
}

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) { v, ok := m[k]; return v, ok }
}

var fullEnv = map[string]string{
	"PRACTICUM_TOKEN":  "p-token",
	"TELEGRAM_TOKEN":   "123:abc",
	"TELEGRAM_CHAT_ID": "42",
}

func writeConfig(t *testing.T, dir string, cfg map[string]any) string {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	p := filepath.Join(dir, "hwbot.json")
	require.NoError(t, os.WriteFile(p, b, 0o600))
	return p
}

func TestNewFailsWithoutCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{LookupEnv: env(map[string]string{"PRACTICUM_TOKEN": "x"})})
	require.Error(t, err)
	assert.ErrorIs(t, err, homework.ErrConfiguration)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
}

func TestNewRejectsBadConfig(t *testing.T) {
	p := writeConfig(t, t.TempDir(), map[string]any{"poll": map[string]any{"interval": "whenever"}})
	_, err := New(context.Background(), Options{ConfigPath: p, LookupEnv: env(fullEnv)})
	require.Error(t, err)
	assert.ErrorIs(t, err, homework.ErrConfiguration)
	assert.Contains(t, err.Error(), "poll.interval")
}

func TestRunPollsAndNotifies(t *testing.T) {
	var gotAuth, gotFrom string
	var mu sync.Mutex
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"hw1","status":"approved"}],"current_date":1000}`))
	}))
	defer api.Close()

	bot := &fakeBotAPI{}
	tg := httptest.NewServer(bot)
	defer tg.Close()

	dir := t.TempDir()
	p := writeConfig(t, dir, map[string]any{
		"api":      map[string]any{"endpoint": api.URL + "/statuses/", "timeout": "5s"},
		"poll":     map[string]any{"interval": "1s"},
		"telegram": map[string]any{"api_url": tg.URL},
		"logging":  map[string]any{"level": "error", "console": true},
		"storage":  map[string]any{"driver": "file", "path": filepath.Join(dir, "state")},
		"metrics":  map[string]any{"enabled": true, "addr": "127.0.0.1:0"},
	})

	a, err := New(context.Background(), Options{ConfigPath: p, LookupEnv: env(fullEnv), MaxIterations: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	texts, chats := bot.sent()
	require.Len(t, texts, 1)
	assert.Equal(t, `Изменился статус проверки работы "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`, texts[0])
	assert.Equal(t, []string{"42"}, chats)

	mu.Lock()
	assert.Equal(t, "OAuth p-token", gotAuth)
	assert.Equal(t, "1651424400", gotFrom)
	mu.Unlock()

	st := a.Loop().State()
	assert.Equal(t, int64(1000), st.LastTimestamp)
	assert.Equal(t, "approved", st.LastStatus)

	b, err := os.ReadFile(filepath.Join(dir, "state.state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"last_timestamp": 1000`)
}

func TestRunStopsOnCancel(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"homeworks":[],"current_date":2000}`))
	}))
	defer api.Close()

	p := writeConfig(t, t.TempDir(), map[string]any{
		"api":     map[string]any{"endpoint": api.URL + "/"},
		"poll":    map[string]any{"interval": "1h"},
		"logging": map[string]any{"level": "error", "console": true},
	})
	a, err := New(context.Background(), Options{ConfigPath: p, LookupEnv: env(fullEnv)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Loop().State().LastTimestamp == 2000 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPollGap(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 3, 0, 0, time.UTC)

	every, err := poller.ParseSchedule("10m")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, pollGap(every, from))

	quarter, err := poller.ParseSchedule("*/15 * * * *")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, pollGap(quarter, from))
}

func TestCheckWatchdogWarnsOnLongInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "60000000")
	t.Setenv("WATCHDOG_PID", "")

	var buf bytes.Buffer
	a := &App{log: logx.NewWriter(&buf, "info"), sd: systemd.New(logx.Nop())}

	a.checkWatchdog(poller.FixedSchedule(30*time.Second), time.Now())
	assert.Empty(t, buf.String())

	a.checkWatchdog(poller.FixedSchedule(10*time.Minute), time.Now())
	assert.Contains(t, buf.String(), "poll interval exceeds systemd WatchdogSec")
}
