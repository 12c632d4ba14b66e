package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

// DefaultGCEvery is how many records pass through an exporter between
// explicit memory-reclamation checkpoints. Multi-hundred-thousand-record
// exports must not grow working memory unbounded.
const DefaultGCEvery = 50000

// Exporter streams rows to a CSV file, one bulk write per batch. The file is
// created fresh; a previous report at the same path is replaced.
type Exporter struct {
	path      string
	file      *os.File
	w         *csv.Writer
	gcEvery   int
	processed int
	sinceGC   int
	logger    zerolog.Logger
}

// Open creates the CSV file and writes the column header once.
func Open(path string, columns []string, gcEvery int, logger zerolog.Logger) (*Exporter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report file %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header to %s: %w", path, err)
	}

	if gcEvery <= 0 {
		gcEvery = DefaultGCEvery
	}

	return &Exporter{
		path:    path,
		file:    f,
		w:       w,
		gcEvery: gcEvery,
		logger:  logger,
	}, nil
}

// WriteBatch appends a batch of rows in one flush. Every gcEvery records the
// exporter requests a garbage-collection checkpoint so batch memory is
// actually released between pages.
func (e *Exporter) WriteBatch(rows [][]string) error {
	for _, row := range rows {
		if err := e.w.Write(row); err != nil {
			return fmt.Errorf("writing row to %s: %w", e.path, err)
		}
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", e.path, err)
	}

	e.processed += len(rows)
	e.sinceGC += len(rows)
	if e.sinceGC >= e.gcEvery {
		e.logger.Debug().Str("file", e.path).Int("processed", e.processed).Msg("memory reclamation checkpoint")
		runtime.GC()
		e.sinceGC = 0
	}
	return nil
}

// Processed returns how many rows have been written, excluding the header.
func (e *Exporter) Processed() int { return e.processed }

// Path returns the output file path.
func (e *Exporter) Path() string { return e.path }

// Close flushes and releases the file handle. Safe on error paths; the
// handle is released even when the final flush fails.
func (e *Exporter) Close() error {
	e.w.Flush()
	flushErr := e.w.Error()
	closeErr := e.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flushing %s: %w", e.path, flushErr)
	}
	return closeErr
}
