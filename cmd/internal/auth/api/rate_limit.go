package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

const (
	failureSweepEvery = 256
	failureLogMaxKeys = 100_000
)

// failureLog keeps recent login failures per key in memory. Keys whose
// failures all left the horizon are swept every failureSweepEvery records,
// and the map never holds more than maxKeys keys.
type failureLog struct {
	mu      sync.Mutex
	horizon time.Duration
	byKey   map[string][]time.Time

	maxKeys int
	writes  int
}

func newFailureLog(horizon time.Duration) *failureLog {
	return &failureLog{
		horizon: horizon,
		byKey:   make(map[string][]time.Time),
		maxKeys: failureLogMaxKeys,
	}
}

func (l *failureLog) record(key string, now time.Time) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writes++
	_, known := l.byKey[key]
	if l.writes%failureSweepEvery == 0 || (!known && len(l.byKey) >= l.maxKeys) {
		l.sweep(now)
	}
	if _, known = l.byKey[key]; !known && len(l.byKey) >= l.maxKeys {
		l.evictStalest()
	}
	l.byKey[key] = append(l.prune(key, now), now)
}

// sweep drops every key without a failure inside the horizon.
func (l *failureLog) sweep(now time.Time) {
	cut := now.Add(-l.horizon)
	for k, ts := range l.byKey {
		if !latest(ts).After(cut) {
			delete(l.byKey, k)
		}
	}
}

// evictStalest drops the key whose most recent failure is the oldest.
func (l *failureLog) evictStalest() {
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for k, ts := range l.byKey {
		if t := latest(ts); !found || t.Before(oldest) {
			victim, oldest, found = k, t, true
		}
	}
	if found {
		delete(l.byKey, victim)
	}
}

func (l *failureLog) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func latest(ts []time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}

// recent returns the failures of key inside the horizon.
func (l *failureLog) recent(key string, now time.Time) []time.Time {
	if key == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.prune(key, now)
	if len(kept) == 0 {
		delete(l.byKey, key)
		return nil
	}
	l.byKey[key] = kept
	return append([]time.Time(nil), kept...)
}

func (l *failureLog) prune(key string, now time.Time) []time.Time {
	cut := now.Add(-l.horizon)
	old := l.byKey[key]
	kept := old[:0]
	for _, t := range old {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (h *Handler) checkLoginIPThrottle(ip string, now time.Time) (bool, time.Duration) {
	if ip == "" || h.cfg.LoginIPMax <= 0 {
		return false, 0
	}
	return evaluateWindowThrottle(now, h.ipFailures.recent(ip, now), h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
}

func (h *Handler) checkLoginUserThrottle(email string, now time.Time) (bool, time.Duration) {
	if email == "" {
		return false, 0
	}
	return evaluateProgressiveLockout(now, h.userFailures.recent(email, now), h.cfg.lockoutTiers())
}

// evaluateWindowThrottle blocks once max failures fall inside window; it
// lifts when the oldest of them leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)

	count := 0
	var oldest time.Time
	for _, f := range failures {
		if f.Before(cut) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout locks for the first tier (in the given order)
// whose threshold is reached, counted from the most recent failure.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	last := latest(failures)
	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := last.Add(tier.Duration)
		if now.Before(until) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
