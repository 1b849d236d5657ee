package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter хранит для каждого ключа время запросов в скользящем окне.
type LocalLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalLimiter создаёт лимитер; ключи без запросов дольше idleTTL удаляются.
func NewLocalLimiter(idleTTL time.Duration) *LocalLimiter {
	return &LocalLimiter{
		hits:    make(map[string][]time.Time),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow пропускает запрос, если за последние rule.Window по ключу было меньше rule.Limit запросов.
// Отклонённый запрос в окне не учитывается.
func (l *LocalLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	recent := inWindow(l.hits[key], now.Add(-rule.Window))
	limit := max(rule.Limit, 1)

	if len(recent) >= limit {
		l.hits[key] = recent
		return Decision{Allowed: false, RetryAfter: recent[0].Add(rule.Window).Sub(now)}, nil
	}

	recent = append(recent, now)
	l.hits[key] = recent
	return Decision{Allowed: true, Remaining: limit - len(recent)}, nil
}

// inWindow отбрасывает отметки не позже start. Отметки упорядочены по времени.
func inWindow(hits []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(start) {
		i++
	}
	return hits[i:]
}

func (l *LocalLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, hits := range l.hits {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) > l.idleTTL {
			delete(l.hits, key)
		}
	}
}

// Len возвращает число отслеживаемых ключей.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
