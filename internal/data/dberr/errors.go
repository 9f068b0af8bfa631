// Package dberr classifies storage failures so callers can decide between
// retrying, reporting a conflict and failing hard.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/platform/apierr"
)

// ErrRetryable marks transient failures (serialization, deadlock, lock timeout).
var ErrRetryable = errors.New("retryable storage error")

// Map wraps err with op and joins the matching sentinel.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	wrap := func(sentinel error) error {
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel, err))
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return wrap(apierr.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(ErrRetryable)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return wrap(apierr.ErrConflict)
		case "23502", "23514", "22P02":
			return wrap(apierr.ErrInvalidArgument)
		case "40001", "40P01", "55P03":
			return wrap(ErrRetryable)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return wrap(apierr.ErrConflict)
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "database is locked"):
		return wrap(ErrRetryable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func IsRetryable(err error) bool { return errors.Is(err, ErrRetryable) }
