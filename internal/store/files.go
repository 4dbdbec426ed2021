package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tyler180/nba-stats-backends/internal/nba"
)

const (
	DefaultPrefix = "nba_player_avgs"
	DateLayout    = "20060102"
)

// Paths is one dated/latest output pair.
type Paths struct {
	Dated  string
	Latest string
}

// WriteError is a failure on one output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Writer persists snapshots under Dir. Nothing is created until a write.
type Writer struct {
	Dir    string
	Prefix string
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Prefix: DefaultPrefix}
}

// Paths names the pair for a season and fetch date; asOf is taken in its own
// location.
func (w *Writer) Paths(season string, asOf time.Time, ext string) Paths {
	prefix := w.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Paths{
		Dated:  filepath.Join(w.Dir, fmt.Sprintf("%s_%s_%s.%s", prefix, season, asOf.Format(DateLayout), ext)),
		Latest: filepath.Join(w.Dir, fmt.Sprintf("%s_latest.%s", prefix, ext)),
	}
}

// WriteCSV writes the dated snapshot and overwrites the latest file. Both
// writes are always attempted; failures come back joined.
func (w *Writer) WriteCSV(t *nba.Table, season string, asOf time.Time) (Paths, error) {
	p := w.Paths(season, asOf, "csv")
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, t); err != nil {
		return p, fmt.Errorf("encode csv: %w", err)
	}
	return p, writePair(p, buf.Bytes())
}

// EncodeCSV writes a header row then one record per row, no index column.
func EncodeCSV(w io.Writer, t *nba.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = nba.FormatCell(row[i])
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writePair(p Paths, data []byte) error {
	var errs []error
	for _, path := range []string{p.Dated, p.Latest} {
		if err := writeAtomic(path, data); err != nil {
			errs = append(errs, &WriteError{Path: path, Err: err})
		}
	}
	return errors.Join(errs...)
}

// writeAtomic replaces path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
