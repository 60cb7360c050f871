package notifier

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/homework"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding; -1 fails forever
	calls    int
	targets  []kit.ChatTarget
	texts    []string
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return kit.MessageRef{}, errors.New("telegram: bad gateway")
	}
	f.targets = append(f.targets, to)
	f.texts = append(f.texts, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.calls}, nil
}

type countingRecorder struct {
	mu           sync.Mutex
	sent, failed int
}

func (r *countingRecorder) NotificationSent()   { r.mu.Lock(); r.sent++; r.mu.Unlock() }
func (r *countingRecorder) NotificationFailed() { r.mu.Lock(); r.failed++; r.mu.Unlock() }

func fastConfig() Config {
	return Config{
		ChatID:        42,
		RatePerSec:    1000,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func TestNotifyDelivers(t *testing.T) {
	sender := &fakeSender{}
	rec := &countingRecorder{}
	s := New(fastConfig(), sender, logx.Nop(), WithRecorder(rec))

	assert.True(t, s.Notify(context.Background(), "hello"))

	require.Len(t, sender.texts, 1)
	assert.Equal(t, "hello", sender.texts[0])
	assert.Equal(t, int64(42), sender.targets[0].ChatID)
	assert.Equal(t, 1, rec.sent)
}

func TestNotifyToChatUsername(t *testing.T) {
	sender := &fakeSender{}
	cfg := fastConfig()
	cfg.ChatID = 0
	cfg.ChatUsername = "@hw_channel"
	s := New(cfg, sender, logx.Nop())

	require.True(t, s.Notify(context.Background(), "hello"))
	require.Len(t, sender.targets, 1)
	assert.Equal(t, "@hw_channel", sender.targets[0].Username)
}

func TestSendRetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	s := New(fastConfig(), sender, logx.Nop())

	require.NoError(t, s.Send(context.Background(), "retry me"))
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, []string{"retry me"}, sender.texts)
}

func TestSendGivesUpWithDeliveryError(t *testing.T) {
	sender := &fakeSender{failures: -1}
	rec := &countingRecorder{}
	s := New(fastConfig(), sender, logx.Nop(), WithRecorder(rec))

	err := s.Send(context.Background(), "never")
	require.Error(t, err)
	assert.ErrorIs(t, err, homework.ErrDelivery)
	assert.Contains(t, err.Error(), "bad gateway")
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 1, rec.failed)
	assert.Empty(t, sender.texts)
}

func TestNotifySwallowsAndLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{failures: -1}
	cfg := fastConfig()
	cfg.RetryMax = 0
	s := New(cfg, sender, logx.NewWriter(&buf, "info"))

	assert.False(t, s.Notify(context.Background(), "lost"))
	assert.Contains(t, buf.String(), " - ERROR - failed to send message")
	assert.Equal(t, 1, sender.calls)
}

func TestSendRejectsEmptyText(t *testing.T) {
	sender := &fakeSender{}
	s := New(fastConfig(), sender, logx.Nop())

	err := s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.ErrorIs(t, err, homework.ErrDelivery)
	assert.Zero(t, sender.calls)
}

func TestSendStopsOnCancel(t *testing.T) {
	sender := &fakeSender{failures: -1}
	cfg := fastConfig()
	cfg.RetryBase = time.Hour
	cfg.RetryMaxDelay = time.Hour
	s := New(cfg, sender, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := s.Send(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, sender.calls)
}

func TestRetryDelayIsCapped(t *testing.T) {
	s := New(Config{RetryBase: time.Second, RetryMaxDelay: 3 * time.Second}, &fakeSender{}, logx.Nop())
	cfg := s.cfg
	for attempt := 1; attempt <= 6; attempt++ {
		d := s.retryDelay(cfg, attempt)
		assert.LessOrEqual(t, d, 3*time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}
