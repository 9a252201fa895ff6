package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Writer writes a CSV report to a temporary file next to the destination, the file only
// appears at the destination once Close succeeds.
type Writer struct {
	path string
	file *os.File
	csv  *csv.Writer
	rows int
}

// Create starts a report at path and writes the header row.
func Create(path string, header []string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	w := &Writer{path: path, file: file, csv: csv.NewWriter(file)}
	if err := w.csv.Write(header); err != nil {
		w.Abort()
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}

	return w, nil
}

func (w *Writer) Write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	w.rows++
	return nil
}

func (w *Writer) WriteAll(rows [][]string) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Path() string {
	return w.path
}

// Close flushes the report and moves it into place.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to close report: %w", err)
	}

	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	log.Info().Str("path", w.path).Int("rows", w.rows).Msg("report: written")
	return nil
}

// Abort discards the temporary file.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.file.Name())
}

// WriteFile writes a complete report, a report with no rows still has its header.
func WriteFile(path string, header []string, rows [][]string) error {
	w, err := Create(path, header)
	if err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}

// AppendFile adds rows to a report, writing the header only when the file is new or empty.
func AppendFile(path string, header []string, rows [][]string) error {
	writeHeader := false
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeHeader = true
	case err != nil:
		return fmt.Errorf("failed to open report: %w", err)
	case info.Size() == 0:
		writeHeader = true
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if writeHeader {
		cw.Write(header)
	}
	for _, row := range rows {
		cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to append to report: %w", err)
	}

	return file.Close()
}
