// Package ratelimit ограничивает частоту запросов по ключу.
//
// LocalLimiter хранит состояние в памяти процесса: лимиты не разделяются между
// экземплярами и сбрасываются при перезапуске. RedisLimiter хранит счётчики в Redis
// и годится для нескольких экземпляров сервиса.
package ratelimit

import (
	"context"
	"time"
)

// Rule задаёт допустимое число запросов за окно.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision содержит результат проверки лимита.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter проверяет и учитывает очередной запрос по ключу.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// Правила для действий, которые ограничиваются по IP клиента.
var (
	RegisterRule   = Rule{Limit: 3, Window: 15 * time.Minute}
	LoginRule      = Rule{Limit: 10, Window: 15 * time.Minute}
	AdminLoginRule = Rule{Limit: 5, Window: 15 * time.Minute}
	PunchRule      = Rule{Limit: 30, Window: time.Minute}
)
