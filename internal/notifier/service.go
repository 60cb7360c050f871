package notifier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hwbot/internal/homework"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var ErrEmptyText = errors.New("notification text is empty")

// Service sends notifications to the configured chat.
//
// It is safe for concurrent use, although hwbot only calls it from the poll loop.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  kit.Sender
	rec     Recorder
	cfg     Config
	limiter *rate.Limiter
	rng     *rand.Rand
}

type Option func(*Service)

// WithRecorder reports delivery outcomes to rec.
func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.rec = rec
		}
	}
}

func New(cfg Config, sender kit.Sender, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		rec:    nopRecorder{},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Notify sends text and reports whether it was delivered.
// Failures are logged as DeliveryError and swallowed.
func (s *Service) Notify(ctx context.Context, text string) bool {
	err := s.Send(ctx, text)
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		s.log.Debug("notification canceled", logx.Err(err))
		return false
	}
	s.log.Error("failed to send message", logx.Err(err), logx.Int("len", len(text)))
	return false
}

// Send delivers text with retries. Any failure is returned as a DeliveryError.
func (s *Service) Send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(text) == "" {
		return homework.DeliveryError(ErrEmptyText)
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if s.sender == nil {
		return homework.DeliveryError(errors.New("no sender configured"))
	}

	to := kit.ChatTarget{ChatID: cfg.ChatID, Username: cfg.ChatUsername, ThreadID: cfg.ThreadID}
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		_, err := s.sender.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true})
		if err == nil {
			s.rec.NotificationSent()
			return nil
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts || ctx.Err() != nil {
			break
		}

		if !sleepCtx(ctx, s.retryDelay(cfg, attempt)) {
			lastErr = ctx.Err()
			break
		}
	}

	s.rec.NotificationFailed()
	return homework.DeliveryError(lastErr)
}

// retryDelay returns the wait before attempt+1: base * 2^(attempt-1), jittered 0.7..1.3, capped.
func (s *Service) retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	s.mu.Lock()
	j := 0.7 + s.rng.Float64()*0.6
	s.mu.Unlock()
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
