package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

// Fetcher returns the decoded status payload for submissions changed since the given epoch second.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) (any, error)
}

// Notifier delivers chat text and reports whether it got through. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, text string) bool
}

// Store persists poll state between restarts.
type Store interface {
	LoadState(ctx context.Context) (storage.State, bool, error)
	SaveState(ctx context.Context, st storage.State) error
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Recorder receives per-iteration outcomes (metrics).
type Recorder interface {
	PollFinished(err error, took time.Duration)
	StatusChanged(status string)
}

type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopped  Phase = "stopped"
)

// State is what the loop remembers between iterations.
type State struct {
	LastTimestamp int64
	LastStatus    string
	LastError     string
}

type Config struct {
	Schedule         Schedule
	InitialTimestamp int64
	// MaxIterations stops Run after that many iterations. Zero runs until ctx is done.
	MaxIterations int
}

// Loop polls the review API and reports status changes and failures to the chat.
// Iterations run one at a time; State has a single writer.
type Loop struct {
	cfg      Config
	fetcher  Fetcher
	notifier Notifier
	log      logx.Logger

	store     Store
	rec       Recorder
	heartbeat func()
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	state State
	phase Phase
}

type Option func(*Loop)

// WithStore loads state on start and saves it after every iteration.
func WithStore(st Store) Option {
	return func(l *Loop) { l.store = st }
}

func WithRecorder(rec Recorder) Option {
	return func(l *Loop) { l.rec = rec }
}

// WithHeartbeat calls fn after every iteration, successful or not.
func WithHeartbeat(fn func()) Option {
	return func(l *Loop) { l.heartbeat = fn }
}

// WithClock replaces time.Now and the inter-iteration wait.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

func New(cfg Config, f Fetcher, n Notifier, log logx.Logger, opts ...Option) *Loop {
	if cfg.Schedule.Schedule == nil {
		cfg.Schedule = FixedSchedule(10 * time.Minute)
	}
	l := &Loop{
		cfg:      cfg,
		fetcher:  f,
		notifier: n,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
		phase:    PhaseStarting,
		state:    State{LastTimestamp: cfg.InitialTimestamp},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) Phase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

func (l *Loop) setPhase(p Phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

// Restore loads persisted state, if a store is configured and holds any.
func (l *Loop) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	st, ok, err := l.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load poll state: %w", err)
	}
	if !ok {
		return nil
	}
	l.mu.Lock()
	if st.LastTimestamp > 0 {
		l.state.LastTimestamp = st.LastTimestamp
	}
	l.state.LastStatus = st.LastStatus
	l.state.LastError = st.LastError
	l.mu.Unlock()
	l.log.Info("poll state restored",
		logx.Int64("last_timestamp", st.LastTimestamp),
		logx.String("last_status", st.LastStatus),
	)
	return nil
}

// Run restores state and polls until ctx is done or the iteration budget is
// spent. It returns nil in both cases. Iteration failures never stop it.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Restore(ctx); err != nil {
		l.log.Warn("starting with fresh poll state", logx.Err(err))
	}
	l.setPhase(PhaseRunning)
	defer l.setPhase(PhaseStopped)

	l.log.Info("poll loop started",
		logx.String("schedule", l.cfg.Schedule.Raw),
		logx.Int64("since", l.State().LastTimestamp),
	)
	for i := 1; ; i++ {
		_ = l.RunOnce(ctx)
		if l.heartbeat != nil {
			l.heartbeat()
		}
		if ctx.Err() != nil {
			return nil
		}
		if l.cfg.MaxIterations > 0 && i >= l.cfg.MaxIterations {
			return nil
		}

		now := l.now()
		wait := l.cfg.Schedule.Next(now).Sub(now)
		l.log.Debug("next poll scheduled", logx.Duration("in", wait))
		if err := l.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// RunOnce performs one poll iteration. Failures are logged and reported to
// the chat (once per distinct message) and returned for inspection; callers
// need not act on them.
func (l *Loop) RunOnce(ctx context.Context) error {
	start := l.now()
	err := l.iterate(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, homework.ErrFetch) {
		// Shutdown interrupted the request; not worth a chat message.
		l.log.Debug("poll interrupted", logx.Err(err))
	} else if err != nil {
		l.reportFailure(ctx, err)
	}
	if l.rec != nil {
		l.rec.PollFinished(err, l.now().Sub(start))
	}
	l.persist(ctx)
	return err
}

func (l *Loop) iterate(ctx context.Context) error {
	since := l.State().LastTimestamp

	raw, err := l.fetcher.Fetch(ctx, since)
	if err != nil {
		return err
	}
	resp, err := homework.Validate(raw)
	if err != nil {
		return err
	}

	if len(resp.Homeworks) == 0 {
		l.log.Info("no status change")
	} else if err := l.handleNewest(ctx, resp.Homeworks[0]); err != nil {
		return err
	}

	if resp.CurrentDate > 0 {
		l.mu.Lock()
		l.state.LastTimestamp = resp.CurrentDate
		l.mu.Unlock()
	}
	return nil
}

// handleNewest compares the first (newest) submission with the last seen
// status and notifies on change.
func (l *Loop) handleNewest(ctx context.Context, v any) error {
	status, err := homework.StatusOf(v)
	if err != nil {
		return err
	}
	if status == l.State().LastStatus {
		l.log.Info("no status change", logx.String("status", status))
		return nil
	}

	sub, err := homework.Parse(v)
	if err != nil {
		return err
	}
	text, err := sub.Message()
	if err != nil {
		return err
	}
	delivered := l.notifier.Notify(ctx, text)

	l.mu.Lock()
	l.state.LastStatus = sub.Status
	l.mu.Unlock()
	if l.rec != nil {
		l.rec.StatusChanged(sub.Status)
	}
	l.audit(ctx, storage.AuditEntry{
		Kind:      storage.AuditStatus,
		Homework:  sub.Name,
		Status:    sub.Status,
		Text:      text,
		Delivered: delivered,
	})
	if delivered {
		l.log.Info("message sent", logx.String("homework", sub.Name), logx.String("status", sub.Status))
	}
	return nil
}

// FailureText renders the chat message for an iteration failure.
func FailureText(err error) string {
	return fmt.Sprintf("Сбой в работе программы: %v.", err)
}

func (l *Loop) reportFailure(ctx context.Context, err error) {
	msg := err.Error()
	l.log.Error("program failure", logx.Err(err), logx.String("kind", string(homework.KindOf(err))))

	l.mu.Lock()
	repeated := l.state.LastError == msg
	l.state.LastError = msg
	l.mu.Unlock()
	if repeated {
		l.log.Debug("failure already reported")
		return
	}

	text := FailureText(err)
	delivered := l.notifier.Notify(ctx, text)
	l.audit(ctx, storage.AuditEntry{Kind: storage.AuditError, Text: text, Delivered: delivered})
	if delivered {
		l.log.Info("message sent", logx.String("kind", string(homework.KindOf(err))))
	}
}

func (l *Loop) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	st := l.State()
	err := l.store.SaveState(context.WithoutCancel(ctx), storage.State{
		LastTimestamp: st.LastTimestamp,
		LastStatus:    st.LastStatus,
		LastError:     st.LastError,
		UpdatedAt:     l.now(),
	})
	if err != nil {
		l.log.Warn("save poll state failed", logx.Err(err))
	}
}

func (l *Loop) audit(ctx context.Context, e storage.AuditEntry) {
	if l.store == nil {
		return
	}
	e.At = l.now()
	if err := l.store.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
		l.log.Warn("audit append failed", logx.Err(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
