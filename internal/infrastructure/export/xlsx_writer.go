package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the name of the single worksheet holding the export
const XLSXSheet = "Orders"

// XLSXWriter streams rows into a single-sheet workbook.
// The workbook is serialized by Close, so rows are only on disk once the run ends.
type XLSXWriter struct {
	file   *excelize.File
	sheet  *excelize.StreamWriter
	dst    io.Writer
	closer io.Closer
	width  int
	rows   int
	closed bool
}

// NewXLSXWriter creates a workbook writer that is serialized to w on Close.
// If w is an io.Closer it is closed by Close.
func NewXLSXWriter(w io.Writer) (*XLSXWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), XLSXSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: failed to name worksheet: %w", err)
	}
	sw, err := f.NewStreamWriter(XLSXSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: failed to open worksheet: %w", err)
	}

	x := &XLSXWriter{file: f, sheet: sw, dst: w}
	if closer, ok := w.(io.Closer); ok {
		x.closer = closer
	}
	return x, nil
}

// CreateXLSXFile creates the output file (and its directory) and returns a writer over it
func CreateXLSXFile(path string) (*XLSXWriter, error) {
	f, err := createOutputFile(path)
	if err != nil {
		return nil, err
	}
	x, err := NewXLSXWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return x, nil
}

// WriteHeader writes the header row, freezes it and fixes the row width
func (x *XLSXWriter) WriteHeader(header []string) error {
	if x.width > 0 {
		return ErrHeaderAlreadyWritten
	}
	// panes must be set before the first row
	if err := x.sheet.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: failed to freeze header: %w", err)
	}
	if err := x.setRow(1, header); err != nil {
		return fmt.Errorf("export: failed to write header: %w", err)
	}
	x.width = len(header)
	return nil
}

// WriteRows appends the rows of one order
func (x *XLSXWriter) WriteRows(rows [][]string) error {
	if x.width == 0 {
		return ErrHeaderNotWritten
	}
	for _, row := range rows {
		if len(row) != x.width {
			return fmt.Errorf("%w: got %d, want %d", ErrRowWidth, len(row), x.width)
		}
		// row 1 is the header
		if err := x.setRow(x.rows+2, row); err != nil {
			return fmt.Errorf("export: failed to write row: %w", err)
		}
		x.rows++
	}
	return nil
}

// Rows returns the number of data rows written
func (x *XLSXWriter) Rows() int {
	return x.rows
}

// Close serializes the workbook to the destination and closes it
func (x *XLSXWriter) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true

	err := x.sheet.Flush()
	if err != nil {
		err = fmt.Errorf("export: failed to flush worksheet: %w", err)
	} else if _, werr := x.file.WriteTo(x.dst); werr != nil {
		err = fmt.Errorf("export: failed to write workbook: %w", werr)
	}
	if cerr := x.file.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("export: failed to release workbook: %w", cerr)
	}
	if x.closer != nil {
		if cerr := x.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: failed to close output: %w", cerr)
		}
	}
	return err
}

func (x *XLSXWriter) setRow(n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return x.sheet.SetRow(cell, cells)
}
