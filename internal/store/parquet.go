package store

import (
	"bytes"
	"fmt"
	"io"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/tyler180/nba-stats-backends/internal/snapshot"
)

// WriteParquet writes the typed snapshot next to the CSV pair.
func (w *Writer) WriteParquet(rows []snapshot.PlayerStatRow, season string, asOf time.Time) (Paths, error) {
	p := w.Paths(season, asOf, "parquet")
	var buf bytes.Buffer
	if err := EncodeParquet(&buf, rows); err != nil {
		return p, fmt.Errorf("encode parquet: %w", err)
	}
	return p, writePair(p, buf.Bytes())
}

func EncodeParquet(out io.Writer, rows []snapshot.PlayerStatRow) error {
	w := parquet.NewWriter(out, parquet.SchemaOf(new(snapshot.PlayerStatRow)), parquet.Compression(&parquet.Snappy))
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
