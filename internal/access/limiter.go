package access

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles secret submissions with a token bucket per user.
type Limiter struct {
	perMinute int
	now       func() time.Time

	mu    sync.Mutex
	users map[string]*userLimit
}

type userLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute attempts per user per minute, bursting up to
// perMinute; 0 = unlimited.
func NewLimiter(perMinute int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		now:       time.Now,
		users:     make(map[string]*userLimit),
	}
}

func (l *Limiter) unlimited() bool {
	return l == nil || l.perMinute <= 0
}

// Allow consumes one attempt for userID and reports whether it was
// available.
func (l *Limiter) Allow(userID string) bool {
	if l.unlimited() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u, ok := l.users[userID]
	if !ok {
		u = &userLimit{limiter: rate.NewLimiter(rate.Limit(l.perMinute)/60, l.perMinute)}
		l.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

// RetryAfter returns how long until userID has an attempt again, rounded
// up to whole seconds.
func (l *Limiter) RetryAfter(userID string) time.Duration {
	if l.unlimited() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return 0
	}
	missing := 1 - u.limiter.TokensAt(l.now())
	if missing <= 0 {
		return 0
	}
	// Float error can push an exact wait just past a whole second.
	secs := math.Ceil(missing/float64(u.limiter.Limit()) - 1e-6)
	return time.Duration(max(secs, 1)) * time.Second
}

// Cleanup drops users idle for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for userID, u := range l.users {
		if u.lastSeen.Before(cutoff) {
			delete(l.users, userID)
		}
	}
}
