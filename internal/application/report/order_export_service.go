package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/orderexport/internal/domain/integration"
	"github.com/erp/orderexport/internal/domain/report"
)

const (
	// DefaultPageSize is used when no page size is configured
	DefaultPageSize = 50
	// MaxPageSize is the largest page the platform serves
	MaxPageSize = 250
)

// NormalizePageSize clamps a configured page size into [1, MaxPageSize].
// Unset or non-positive values fall back to DefaultPageSize.
func NormalizePageSize(size int) int {
	if size < 1 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// RowSink receives the export rows as they are produced
type RowSink interface {
	// WriteHeader writes the header row; called once before any order rows
	WriteHeader(header []string) error
	// WriteRows appends the rows of one order and makes them durable
	WriteRows(rows [][]string) error
	// Close flushes and releases the output
	Close() error
}

// ExportRequest describes one export run
type ExportRequest struct {
	// Range is the creation-time window to export
	Range integration.DateRange
	// PageSize is clamped with NormalizePageSize
	PageSize int
	// MaxRecords caps the number of exported orders; zero or negative means unlimited
	MaxRecords int
}

// ExportResult reports what an export run did
type ExportResult struct {
	// Total is the advisory order count, clamped to MaxRecords
	Total     int64
	Processed int
	Skipped   int
	Rows      int
	Pages     int
	StartedAt time.Time
	Elapsed   time.Duration
}

// OrderExportService drives the export: it pages through the source, drops duplicate orders,
// derives payment fields and streams each order's rows to the sink.
// Orders are handled strictly one at a time in page order.
type OrderExportService struct {
	source   integration.OrderSource
	schema   *report.OrderExportSchema
	retry    RetryPolicy
	observer ProgressObserver
	logger   *zap.Logger
	now      func() time.Time
}

// OrderExportOption is a functional option for OrderExportService
type OrderExportOption func(*OrderExportService)

// WithRetryPolicy sets the retry policy applied to every source call
func WithRetryPolicy(p RetryPolicy) OrderExportOption {
	return func(s *OrderExportService) {
		s.retry = p
	}
}

// WithProgressObserver sets the observer notified after each processed order
func WithProgressObserver(o ProgressObserver) OrderExportOption {
	return func(s *OrderExportService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) OrderExportOption {
	return func(s *OrderExportService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) OrderExportOption {
	return func(s *OrderExportService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOrderExportService creates a new OrderExportService
func NewOrderExportService(source integration.OrderSource, schema *report.OrderExportSchema, opts ...OrderExportOption) *OrderExportService {
	s := &OrderExportService{
		source:   source,
		schema:   schema,
		retry:    DefaultRetryPolicy(),
		observer: NopProgress{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export runs the export and closes the sink.
// On failure the returned result still describes the rows already written.
func (s *OrderExportService) Export(ctx context.Context, req ExportRequest, sink RowSink) (*ExportResult, error) {
	result := &ExportResult{StartedAt: s.now()}

	err := s.run(ctx, req, sink, result)
	result.Elapsed = s.now().Sub(result.StartedAt)

	if cerr := sink.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: closing output: %w", ErrExportAborted, cerr)
	}

	if err != nil {
		s.logger.Error("Order export failed",
			zap.Int("processed", result.Processed),
			zap.Int("skipped", result.Skipped),
			zap.Int("rows", result.Rows),
			zap.Duration("elapsed", result.Elapsed),
			zap.Error(err),
		)
		return result, err
	}

	s.logger.Info("Order export completed",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("rows", result.Rows),
		zap.Int("pages", result.Pages),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (s *OrderExportService) run(ctx context.Context, req ExportRequest, sink RowSink, result *ExportResult) error {
	if err := req.Range.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExportRequest, err)
	}
	pageSize := NormalizePageSize(req.PageSize)

	result.Total = s.advisoryTotal(ctx, req)

	s.logger.Info("Starting order export",
		zap.Time("start_time", req.Range.Start),
		zap.Time("end_time", req.Range.End),
		zap.Int64("total", result.Total),
		zap.Int("page_size", pageSize),
		zap.Int("max_records", req.MaxRecords),
	)

	if err := sink.WriteHeader(s.schema.Header()); err != nil {
		return fmt.Errorf("%w: writing header: %w", ErrExportAborted, err)
	}

	// seen guards against orders shifting onto the next page when new orders arrive mid-run
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		var orders []integration.Order
		err := s.retry.Do(ctx, s.logger, "list orders", func() error {
			var err error
			orders, err = s.source.ListOrders(ctx, req.Range, page, pageSize)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: fetching page %d: %w", ErrExportAborted, page, err)
		}
		result.Pages++

		s.logger.Debug("Fetched page of orders",
			zap.Int("page_no", page),
			zap.Int("orders_in_page", len(orders)),
		)

		for i := range orders {
			order := &orders[i]

			if _, ok := seen[order.ID]; ok {
				result.Skipped++
				s.logger.Debug("Skipping order already exported",
					zap.String("order_id", order.ID),
					zap.Int("page_no", page),
				)
				continue
			}

			rows, err := s.exportOrder(ctx, order, sink)
			if err != nil {
				return err
			}
			seen[order.ID] = struct{}{}
			result.Processed++
			result.Rows += rows

			s.observer.OnOrderProcessed(Progress{
				Processed: result.Processed,
				Skipped:   result.Skipped,
				Total:     result.Total,
				OrderID:   order.ID,
				StartedAt: result.StartedAt,
				Now:       s.now(),
			})

			if req.MaxRecords > 0 && result.Processed >= req.MaxRecords {
				s.logger.Info("Record cap reached", zap.Int("max_records", req.MaxRecords))
				return nil
			}
		}

		if len(orders) < pageSize {
			return nil
		}
	}
}

// exportOrder fetches the order's transactions and writes its rows, returning the row count
func (s *OrderExportService) exportOrder(ctx context.Context, order *integration.Order, sink RowSink) (int, error) {
	var transactions []integration.Transaction
	err := s.retry.Do(ctx, s.logger, "list transactions", func() error {
		var err error
		transactions, err = s.source.ListTransactions(ctx, order.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: fetching transactions for order %s: %w", ErrExportAborted, order.ID, err)
	}

	payment := integration.SummarizePayments(transactions)
	rows := s.schema.Rows(order, payment)
	if err := sink.WriteRows(rows); err != nil {
		return 0, fmt.Errorf("%w: writing order %s: %w", ErrExportAborted, order.ID, err)
	}
	return len(rows), nil
}

// advisoryTotal returns the source's count clamped to the record cap.
// It only feeds the ETA, so a failed count is logged and treated as unknown.
func (s *OrderExportService) advisoryTotal(ctx context.Context, req ExportRequest) int64 {
	var count int64
	err := s.retry.Do(ctx, s.logger, "count orders", func() error {
		var err error
		count, err = s.source.CountOrders(ctx, req.Range)
		return err
	})
	if err != nil {
		s.logger.Warn("Failed to count orders, progress estimate disabled", zap.Error(err))
		return 0
	}
	if req.MaxRecords > 0 && count > int64(req.MaxRecords) {
		return int64(req.MaxRecords)
	}
	return count
}
