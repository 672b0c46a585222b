// Package export writes query results in file formats for downstream tools.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/ACONIO/swstb.crm.birthdays-new/internal/database"
)

// CSVWriter streams records as CSV rows in a fixed column order. It buffers
// writes and keeps no rows in memory.
type CSVWriter struct {
	buffer   *bufio.Writer
	writer   *csv.Writer
	columns  []string
	mu       sync.Mutex
	rowCount int64
	closed   bool
}

// CSVWriterConfig holds configuration for creating a CSV writer
type CSVWriterConfig struct {
	// Columns in output order, written as the header row
	Columns []string
	// Buffer size in bytes (default: 64KB)
	BufferSize int
	// Separator, e.g. ';' for Excel with German locale (default: ',')
	Comma rune
}

// NewCSVWriter creates a CSV writer on w and writes the header row
func NewCSVWriter(w io.Writer, cfg CSVWriterConfig) (*CSVWriter, error) {
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("csv writer needs at least one column")
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	buffer := bufio.NewWriterSize(w, bufSize)
	writer := csv.NewWriter(buffer)
	if cfg.Comma != 0 {
		writer.Comma = cfg.Comma
	}

	if err := writer.Write(cfg.Columns); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	return &CSVWriter{
		buffer:  buffer,
		writer:  writer,
		columns: append([]string(nil), cfg.Columns...),
	}, nil
}

// WriteRecord writes one record. Missing and NULL columns become empty cells.
// This method is thread-safe.
func (w *CSVWriter) WriteRecord(rec database.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	row := make([]string, len(w.columns))
	for i, col := range w.columns {
		row[i] = rec.String(col)
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.rowCount++
	return nil
}

// Close flushes remaining data. The underlying writer stays open.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("csv flush error: %w", err)
	}
	return w.buffer.Flush()
}

// RowCount returns the number of data rows written (excludes header).
func (w *CSVWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}
