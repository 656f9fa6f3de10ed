package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key, such as a login email. Buckets
// idle for longer than Expiry are forgotten.
type Limiter struct {
	Expiry   time.Duration
	Burst    int
	Interval time.Duration

	now     func() time.Time
	keys    map[string]*keyLimiter
	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.Once
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLimiter allows burst attempts per key, refilled at one per interval.
func NewLimiter(burst int, interval time.Duration, expiry time.Duration) *Limiter {
	l := newLimiter(burst, interval, expiry, time.Now)
	go l.sweep(time.Minute)
	return l
}

func newLimiter(burst int, interval time.Duration, expiry time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		Expiry:   expiry,
		Burst:    burst,
		Interval: interval,
		now:      now,
		keys:     make(map[string]*keyLimiter),
		stop:     make(chan struct{}),
	}
}

// Allow reports whether one more attempt for key is allowed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kl, ok := l.keys[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rate.Every(l.Interval), l.Burst)}
		l.keys[key] = kl
	}
	kl.lastAccess = now
	return kl.limiter.AllowN(now, 1)
}

// Stop ends the background sweep.
func (l *Limiter) Stop() {
	l.stopped.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.forgetIdle()
		}
	}
}

func (l *Limiter) forgetIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, v := range l.keys {
		if now.Sub(v.lastAccess) > l.Expiry {
			delete(l.keys, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
