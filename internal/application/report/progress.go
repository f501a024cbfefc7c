package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Progress is a snapshot of the export taken after an order is written
type Progress struct {
	Processed int
	Skipped   int
	// Total is the advisory order count; zero when unknown
	Total     int64
	OrderID   string
	StartedAt time.Time
	Now       time.Time
}

// Elapsed returns the wall-clock time since the export started
func (p Progress) Elapsed() time.Duration {
	return p.Now.Sub(p.StartedAt)
}

// ETA extrapolates the average time per processed order over the advisory total.
// It returns false when no estimate can be made.
func (p Progress) ETA() (time.Time, bool) {
	if p.Processed <= 0 || p.Total <= 0 {
		return time.Time{}, false
	}
	perOrder := p.Elapsed() / time.Duration(p.Processed)
	return p.StartedAt.Add(perOrder * time.Duration(p.Total)), true
}

// HoursRemaining returns the hours between now and the ETA
func (p Progress) HoursRemaining() float64 {
	eta, ok := p.ETA()
	if !ok {
		return 0
	}
	return eta.Sub(p.Now).Hours()
}

// ProgressObserver is notified after each processed order.
// Observers are display-only and cannot influence the export.
type ProgressObserver interface {
	OnOrderProcessed(p Progress)
}

// NopProgress discards progress updates
type NopProgress struct{}

// OnOrderProcessed implements ProgressObserver
func (NopProgress) OnOrderProcessed(Progress) {}

// ---------------------------------------------------------------------------
// ConsoleProgress
// ---------------------------------------------------------------------------

// ConsoleProgress rewrites a single progress line on a terminal
type ConsoleProgress struct {
	mu      sync.Mutex
	w       io.Writer
	written bool
}

// NewConsoleProgress creates a console observer writing to w
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{w: w}
}

// OnOrderProcessed implements ProgressObserver
func (c *ConsoleProgress) OnOrderProcessed(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	eta := "unknown"
	if t, ok := p.ETA(); ok {
		eta = t.Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(c.w, "\r%6d/%d (Order %14s) ETA: %-20s (%.2f hours)",
		p.Processed+p.Skipped, p.Total, p.OrderID, eta, p.HoursRemaining())
	c.written = true
}

// Done terminates the progress line
func (c *ConsoleProgress) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written {
		fmt.Fprintln(c.w)
		c.written = false
	}
}

// ---------------------------------------------------------------------------
// LogProgress
// ---------------------------------------------------------------------------

// LogProgress reports progress through the structured logger every N orders
type LogProgress struct {
	logger *zap.Logger
	every  int
}

// NewLogProgress creates a log observer; every < 1 logs each order
func NewLogProgress(logger *zap.Logger, every int) *LogProgress {
	if every < 1 {
		every = 1
	}
	return &LogProgress{logger: logger, every: every}
}

// OnOrderProcessed implements ProgressObserver
func (l *LogProgress) OnOrderProcessed(p Progress) {
	if p.Processed%l.every != 0 {
		return
	}
	fields := []zap.Field{
		zap.Int("processed", p.Processed),
		zap.Int("skipped", p.Skipped),
		zap.Int64("total", p.Total),
		zap.String("order_id", p.OrderID),
		zap.Duration("elapsed", p.Elapsed()),
	}
	if eta, ok := p.ETA(); ok {
		fields = append(fields,
			zap.Time("eta", eta),
			zap.Float64("hours_remaining", p.HoursRemaining()),
		)
	}
	l.logger.Info("Export progress", fields...)
}

var (
	_ ProgressObserver = NopProgress{}
	_ ProgressObserver = (*ConsoleProgress)(nil)
	_ ProgressObserver = (*LogProgress)(nil)
)
