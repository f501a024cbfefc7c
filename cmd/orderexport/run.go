package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	reportapp "github.com/erp/orderexport/internal/application/report"
	"github.com/erp/orderexport/internal/domain/integration"
	"github.com/erp/orderexport/internal/domain/report"
	"github.com/erp/orderexport/internal/infrastructure/config"
	"github.com/erp/orderexport/internal/infrastructure/ecommerce"
	"github.com/erp/orderexport/internal/infrastructure/export"
	"github.com/erp/orderexport/internal/infrastructure/logger"
	"github.com/erp/orderexport/internal/infrastructure/storage"
)

const (
	summaryTimeFormat = "2006-01-02 15:04:05 -0700"
	// logProgressEvery is how often the log observer reports, in orders
	logProgressEvery = 25
)

// runExport performs one export run and returns the path of the output file.
// The path is returned even when the run fails so the partial file can be reported.
func runExport(ctx context.Context, cfg *config.Config, out io.Writer, log *zap.Logger, now func() time.Time) (string, error) {
	policy := retryPolicy(&cfg.Retry)

	adapter, err := ecommerce.NewShopifyAdapter(shopifyConfig(&cfg.Shop), ecommerce.WithShopifyLogger(log))
	if err != nil {
		return "", err
	}

	var loc *time.Location
	err = policy.Do(ctx, log, "shop", func() error {
		var lerr error
		loc, lerr = adapter.ShopLocation(ctx)
		return lerr
	})
	if err != nil {
		return "", fmt.Errorf("resolve shop time zone: %w", err)
	}

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return "", err
	}
	date := exportDate(&cfg.Export, now(), loc)
	path := filepath.Join(cfg.Export.OutputDir, export.FileName(cfg.Shop.Name, date, now(), format))

	sink, err := export.Create(path, format)
	if err != nil {
		return "", err
	}

	observer, console := progressObserver(cfg.Export.Progress, out, log)
	service := reportapp.NewOrderExportService(adapter, report.NewOrderExportSchema(loc),
		reportapp.WithRetryPolicy(policy),
		reportapp.WithProgressObserver(observer),
		reportapp.WithLogger(log),
		reportapp.WithClock(now),
	)

	result, err := service.Export(ctx, reportapp.ExportRequest{
		Range:      integration.DayRange(date, loc),
		PageSize:   cfg.Export.PageSize,
		MaxRecords: cfg.Export.MaxRecords,
	}, sink)
	if console != nil {
		console.Done()
	}
	if err != nil {
		fmt.Fprintf(out, "Export aborted after %d orders: %v\nPartial output left at %s\n", result.Processed, err, path)
		return path, err
	}

	fmt.Fprintf(out, "%s Wrote %d in %s to %s\n",
		now().Format(summaryTimeFormat), result.Processed, result.Elapsed.Round(time.Millisecond), path)

	if cfg.Storage.Enabled {
		meta := storage.ExportMetadata{Shop: cfg.Shop.Name, Date: date, RunID: logger.GetRunID(ctx)}
		if err := upload(ctx, &cfg.Storage, path, meta, out, log); err != nil {
			return path, err
		}
	}
	return path, nil
}

// shopifyConfig maps the shop settings onto the adapter configuration
func shopifyConfig(c *config.ShopConfig) *ecommerce.ShopifyConfig {
	var sc *ecommerce.ShopifyConfig
	if c.HasToken() {
		sc = ecommerce.NewShopifyConfig(c.Name, c.Token)
	} else {
		sc = ecommerce.NewPrivateAppShopifyConfig(c.Name, c.APIKey, c.Password)
	}
	sc.APIVersion = c.APIVersion
	sc.APIBaseURL = c.BaseURL
	sc.TimeoutSeconds = int(c.Timeout / time.Second)
	return sc
}

func retryPolicy(c *config.RetryConfig) reportapp.RetryPolicy {
	p := reportapp.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.InitialInterval > 0 {
		p.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		p.MaxInterval = c.MaxInterval
	}
	return p
}

// exportDate returns the configured date as a calendar day in loc, or today there when unset
func exportDate(c *config.ExportConfig, now time.Time, loc *time.Location) time.Time {
	if c.HasDate() {
		y, m, d := c.Date.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// progressObserver picks the observer for mode. The console observer is also
// returned so the caller can end its line once the run stops.
func progressObserver(mode string, out io.Writer, log *zap.Logger) (reportapp.ProgressObserver, *reportapp.ConsoleProgress) {
	switch mode {
	case config.ProgressLog:
		return reportapp.NewLogProgress(log, logProgressEvery), nil
	case config.ProgressNone:
		return reportapp.NopProgress{}, nil
	default:
		console := reportapp.NewConsoleProgress(out)
		return console, console
	}
}

func upload(ctx context.Context, cfg *config.StorageConfig, path string, meta storage.ExportMetadata, out io.Writer, log *zap.Logger) error {
	store, err := storage.NewExportStore(cfg, storage.WithLogger(log))
	if err != nil {
		return fmt.Errorf("configure upload: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("prepare bucket: %w", err)
	}
	res, err := store.UploadFile(ctx, path, meta)
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}

	fmt.Fprintf(out, "Uploaded to s3://%s/%s\n", res.Bucket, res.Key)
	if res.DownloadURL != "" {
		fmt.Fprintf(out, "Download (expires %s): %s\n", res.ExpiresAt.Format(summaryTimeFormat), res.DownloadURL)
	}
	return nil
}
