// Package ratelimit guards the command surface with a per-user burst guard and
// trailing hourly and daily windows.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Reasons reported when a request is rejected.
const (
	ReasonBurst  = "burst_limit"
	ReasonHourly = "hourly_limit"
	ReasonDaily  = "daily_limit"
)

// Keys for callers that are not Telegram users. Telegram user ids are
// positive, so these never collide with them.
const (
	APIClient int64 = -1
	MCPClient int64 = -2
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// Config holds the limiter thresholds.
type Config struct {
	BurstLimit      int
	BurstWindow     time.Duration // gap after which the rapid-fire counter resets
	RapidInterval   time.Duration // gaps shorter than this count towards the burst
	RequestsPerHour int
	RequestsPerDay  int
	CleanupInterval time.Duration
}

// DefaultConfig returns the stock thresholds: 3 rapid requests, 10 per hour, 50 per day.
func DefaultConfig() Config {
	return Config{
		BurstLimit:      3,
		BurstWindow:     time.Minute,
		RapidInterval:   10 * time.Second,
		RequestsPerHour: 10,
		RequestsPerDay:  50,
		CleanupInterval: time.Hour,
	}
}

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed bool
	Reason  string
	ResetIn time.Duration
}

// Stats describes one user's current usage.
type Stats struct {
	UserID          int64
	HourlyRequests  int
	DailyRequests   int
	HourlyLimit     int
	DailyLimit      int
	HourlyRemaining int
	DailyRemaining  int
	LastRequest     time.Time
	BurstCount      int
}

// GlobalStats summarises all tracked users.
type GlobalStats struct {
	TrackedUsers  int
	TotalRequests int
}

type userState struct {
	requests    []time.Time // ascending, pruned lazily
	lastRequest time.Time
	burstCount  int
}

// Limiter tracks per-user request history. It is safe for concurrent use.
type Limiter struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	users map[int64]*userState

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used by the cleanup loop.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter and starts its background cleanup loop.
// Zero-valued thresholds fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Limiter {
	def := DefaultConfig()
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = def.BurstLimit
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = def.BurstWindow
	}
	if cfg.RapidInterval <= 0 {
		cfg.RapidInterval = def.RapidInterval
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = def.RequestsPerHour
	}
	if cfg.RequestsPerDay <= 0 {
		cfg.RequestsPerDay = def.RequestsPerDay
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
		users:  make(map[int64]*userState),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// CanMakeRequest checks the burst, hourly and daily windows in that order.
// The first violated window decides the reason. Callers using this two-step
// form must call RecordRequest after an allowed decision; Allow does both
// under one lock.
func (l *Limiter) CanMakeRequest(userID int64) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(l.state(userID), l.now())
}

// RecordRequest appends the current time to the user's history.
func (l *Limiter) RecordRequest(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(l.state(userID), l.now())
}

// Allow checks and, when allowed, records the request atomically.
func (l *Limiter) Allow(userID int64) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	st := l.state(userID)
	d := l.check(st, now)
	if d.Allowed {
		l.record(st, now)
	}
	return d
}

func (l *Limiter) state(userID int64) *userState {
	st, ok := l.users[userID]
	if !ok {
		st = &userState{}
		l.users[userID] = st
	}
	return st
}

func (l *Limiter) record(st *userState, now time.Time) {
	st.requests = append(st.requests, now)
	st.lastRequest = now
}

func (l *Limiter) check(st *userState, now time.Time) Decision {
	if l.burstExceeded(st, now) {
		return Decision{
			Reason:  ReasonBurst,
			ResetIn: nonNegative(st.lastRequest.Add(l.cfg.BurstWindow).Sub(now)),
		}
	}

	st.requests = pruneBefore(st.requests, now.Add(-dayWindow))

	hourly := within(st.requests, now.Add(-hourWindow))
	if len(hourly) >= l.cfg.RequestsPerHour {
		return Decision{
			Reason:  ReasonHourly,
			ResetIn: nonNegative(hourly[0].Add(hourWindow).Sub(now)),
		}
	}

	if len(st.requests) >= l.cfg.RequestsPerDay {
		return Decision{
			Reason:  ReasonDaily,
			ResetIn: nonNegative(st.requests[0].Add(dayWindow).Sub(now)),
		}
	}

	return Decision{Allowed: true}
}

// burstExceeded updates the rapid-fire counter. A gap shorter than the rapid
// interval extends the run, a gap inside the burst window restarts it at one,
// and a longer gap clears it.
func (l *Limiter) burstExceeded(st *userState, now time.Time) bool {
	if st.lastRequest.IsZero() {
		st.burstCount = 0
		return false
	}
	gap := now.Sub(st.lastRequest)
	if gap >= l.cfg.BurstWindow {
		st.burstCount = 0
		return false
	}
	if gap < l.cfg.RapidInterval {
		st.burstCount++
	} else {
		st.burstCount = 1
	}
	return st.burstCount >= l.cfg.BurstLimit
}

// Stats returns the usage of one user without creating state for unknown users.
func (l *Limiter) Stats(userID int64) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s := Stats{
		UserID:      userID,
		HourlyLimit: l.cfg.RequestsPerHour,
		DailyLimit:  l.cfg.RequestsPerDay,
	}
	if st, ok := l.users[userID]; ok {
		s.HourlyRequests = len(within(st.requests, now.Add(-hourWindow)))
		s.DailyRequests = len(within(st.requests, now.Add(-dayWindow)))
		s.LastRequest = st.lastRequest
		s.BurstCount = st.burstCount
	}
	s.HourlyRemaining = max(0, s.HourlyLimit-s.HourlyRequests)
	s.DailyRemaining = max(0, s.DailyLimit-s.DailyRequests)
	return s
}

// GlobalStats returns aggregate counters over all tracked users.
func (l *Limiter) GlobalStats() GlobalStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-dayWindow)
	g := GlobalStats{TrackedUsers: len(l.users)}
	for _, st := range l.users {
		g.TotalRequests += len(within(st.requests, cutoff))
	}
	return g
}

// TrackedUsers returns the number of users with retained state.
func (l *Limiter) TrackedUsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Cleanup prunes history older than the daily window and drops users whose
// last request is older than that window.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-dayWindow)
	removed := 0
	for id, st := range l.users {
		st.requests = pruneBefore(st.requests, cutoff)
		if len(st.requests) == 0 && st.lastRequest.Before(cutoff) {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				l.logger.Debug("ratelimit: cleanup", slog.Int("removed_users", n))
			}
		}
	}
}

// pruneBefore drops timestamps at or before cutoff.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// within returns the suffix of ts strictly after cutoff.
func within(ts []time.Time, cutoff time.Time) []time.Time {
	for i, t := range ts {
		if t.After(cutoff) {
			return ts[i:]
		}
	}
	return nil
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
