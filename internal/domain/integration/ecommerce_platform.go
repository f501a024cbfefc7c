package integration

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// OrderSource Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// Request errors
	ErrInvalidDateRange = errors.New("integration: invalid date range")
	ErrInvalidOrderID   = errors.New("integration: invalid order ID")
)

// IsTransient reports whether err is worth retrying.
// Rate limiting, platform outages and per-request timeouts are transient;
// everything else (bad credentials, malformed requests, undecodable responses) is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrPlatformUnavailable) ||
		errors.Is(err, ErrPlatformRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// DateRange
// ---------------------------------------------------------------------------

// DateRange is an inclusive creation-time window
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DayRange returns the window [date 00:00:00, date 23:59:59] in loc.
// Only the calendar date of the given time is used.
func DayRange(date time.Time, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return DateRange{Start: start, End: end}
}

// Validate validates the date range
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("integration: start time and end time are required")
	}
	if r.Start.After(r.End) {
		return ErrInvalidDateRange
	}
	return nil
}

// ---------------------------------------------------------------------------
// OrderSource Port Interface
// ---------------------------------------------------------------------------

// OrderSource defines the port interface for a remote commerce platform that orders are read from.
// Implementations are read-only; paging is 1-indexed and ordered by ascending creation time.
// A page shorter than pageSize marks the end of the data.
type OrderSource interface {
	// CountOrders returns the number of orders created within the range.
	// The value is advisory: orders created mid-run are not reflected in it.
	CountOrders(ctx context.Context, r DateRange) (int64, error)

	// ListOrders returns one page of orders created within the range
	ListOrders(ctx context.Context, r DateRange, page, pageSize int) ([]Order, error)

	// ListTransactions returns the transactions recorded against an order, in platform order
	ListTransactions(ctx context.Context, orderID string) ([]Transaction, error)
}
