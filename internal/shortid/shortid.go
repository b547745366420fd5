// Package shortid issues the compact public identifiers of questionnaires and responses.
//
// An identifier is the base-36 form of the current Unix time in milliseconds.
// Identifiers are URL-safe and roughly increase over time. They are not secret.
package shortid

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"NYCU-SDC/questionnaire-backend/internal"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// DefaultAttempts bounds how many identifiers Retry tries before giving up.
const DefaultAttempts = 3

// Generator issues identifiers that never repeat within one process,
// even when called several times inside the same millisecond.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock is used by tests to pin the clock.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms

	return strconv.FormatInt(ms, 36)
}

// Issuer is anything that can hand out a fresh identifier.
type Issuer interface {
	Generate() string
}

// Retry calls fn with a freshly generated identifier and retries with a new one
// when fn fails on a unique constraint violation. Any other error is returned as is.
func Retry[T any](ctx context.Context, issuer Issuer, attempts int, fn func(ctx context.Context, id string) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, issuer.Generate())
		if err == nil {
			return result, nil
		}
		if !IsUniqueViolation(err) {
			return zero, err
		}
	}

	return zero, internal.ErrShortIDExhausted
}

// IsUniqueViolation reports whether err carries a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
