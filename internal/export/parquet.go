// Package export writes analysis results to Parquet for downstream
// analytics.
package export

import (
	"fmt"
	"io"
	"os"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/dermbill/internal/model"
)

// WriteLineItems writes one Parquet row per billing line across all
// results. Returns the number of rows written.
func WriteLineItems(w io.Writer, results []TaggedResult) (int, error) {
	writer := goparquet.NewGenericWriter[model.LineItemRow](w)

	total := 0
	for _, tr := range results {
		rows := model.LineItemRows(tr.NoteFile, tr.Result)
		if len(rows) == 0 {
			continue
		}
		n, err := writer.Write(rows)
		if err != nil {
			return total, fmt.Errorf("write rows for %s: %w", tr.NoteFile, err)
		}
		total += n
	}
	if err := writer.Close(); err != nil {
		return total, fmt.Errorf("close parquet writer: %w", err)
	}
	return total, nil
}

// TaggedResult pairs an analysis result with the note file it came from.
type TaggedResult struct {
	NoteFile string
	Result   *model.AnalysisResult
}

// WriteFile writes the rows to a new file at path.
func WriteFile(path string, results []TaggedResult) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := WriteLineItems(f, results)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	return n, nil
}

// ReadLineItems reads all rows back from a Parquet file. Used by tests and
// spot checks.
func ReadLineItems(path string) ([]model.LineItemRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := goparquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := goparquet.NewGenericReader[model.LineItemRow](pf)
	defer reader.Close()

	var out []model.LineItemRow
	buf := make([]model.LineItemRow, 256)
	for {
		n, readErr := reader.Read(buf)
		out = append(out, buf[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, readErr)
		}
	}
	return out, nil
}
