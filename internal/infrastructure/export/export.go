// Package export writes order export rows to CSV or XLSX files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Format identifies an output file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name; empty means CSV
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// Extension returns the file extension for the format, without the dot
func (f Format) Extension() string {
	return string(f)
}

// Writer is the row sink every format provides
type Writer interface {
	WriteHeader(header []string) error
	WriteRows(rows [][]string) error
	Rows() int
	Close() error
}

// Create creates the output file at path and returns a writer for format
func Create(path string, format Format) (Writer, error) {
	switch format {
	case FormatCSV:
		return CreateCSVFile(path)
	case FormatXLSX:
		return CreateXLSXFile(path)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

func createOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("export: failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("export: failed to create output file: %w", err)
	}
	return f, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the output file name <shop>_orders_<date>_<YYYYMMDDHHMMSS>.<ext>
func FileName(shop string, date, now time.Time, format Format) string {
	shop = unsafeFileChars.ReplaceAllString(shop, "_")
	if shop == "" {
		shop = "shop"
	}
	return fmt.Sprintf("%s_orders_%s_%s.%s",
		shop, date.Format("2006-01-02"), now.Format("20060102150405"), format.Extension())
}
