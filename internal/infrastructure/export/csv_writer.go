package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrHeaderAlreadyWritten is returned when the header is written twice
var ErrHeaderAlreadyWritten = errors.New("export: header already written")

// ErrHeaderNotWritten is returned when rows are written before the header
var ErrHeaderNotWritten = errors.New("export: header must be written before rows")

// ErrRowWidth is returned for a row whose column count differs from the header
var ErrRowWidth = errors.New("export: row width does not match header")

// CSVWriter streams rows to a CSV destination.
// Every WriteRows call is flushed so an interrupted run leaves complete orders on disk.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
	width  int
	rows   int
}

// WriterOption is a functional option for CSVWriter
type WriterOption func(*CSVWriter)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) WriterOption {
	return func(c *CSVWriter) {
		c.w.Comma = d
	}
}

// WithCRLF terminates records with \r\n
func WithCRLF(crlf bool) WriterOption {
	return func(c *CSVWriter) {
		c.w.UseCRLF = crlf
	}
}

// NewCSVWriter creates a writer over w. If w is an io.Closer it is closed by Close.
func NewCSVWriter(w io.Writer, opts ...WriterOption) *CSVWriter {
	c := &CSVWriter{w: csv.NewWriter(w)}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCSVFile creates the output file (and its directory) and returns a writer over it
func CreateCSVFile(path string, opts ...WriterOption) (*CSVWriter, error) {
	f, err := createOutputFile(path)
	if err != nil {
		return nil, err
	}
	return NewCSVWriter(f, opts...), nil
}

// WriteHeader writes the header row and fixes the row width
func (c *CSVWriter) WriteHeader(header []string) error {
	if c.width > 0 {
		return ErrHeaderAlreadyWritten
	}
	if err := c.w.Write(header); err != nil {
		return fmt.Errorf("export: failed to write header: %w", err)
	}
	c.width = len(header)
	return c.flush()
}

// WriteRows writes the rows of one order and flushes them
func (c *CSVWriter) WriteRows(rows [][]string) error {
	if c.width == 0 {
		return ErrHeaderNotWritten
	}
	for _, row := range rows {
		if len(row) != c.width {
			return fmt.Errorf("%w: got %d, want %d", ErrRowWidth, len(row), c.width)
		}
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("export: failed to write row: %w", err)
		}
		c.rows++
	}
	return c.flush()
}

// Rows returns the number of data rows written
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Close flushes pending output and closes the destination
func (c *CSVWriter) Close() error {
	err := c.flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: failed to close output: %w", cerr)
		}
		c.closer = nil
	}
	return err
}

func (c *CSVWriter) flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("export: failed to flush output: %w", err)
	}
	return nil
}
