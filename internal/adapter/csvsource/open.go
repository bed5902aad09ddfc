// Package csvsource loads gridded observations and Agreste crop statistics
// from CSV exports. Files ending in .zst are decompressed on the fly.
package csvsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// openCSV opens path as a CSV reader, decompressing zstd when the name ends
// in .zst. The returned closer releases both the decoder and the file.
func openCSV(path string) (*csv.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	var r io.Reader = f
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open %s: zstd: %w", path, err)
		}
		r = zr
		closer = closerFunc(func() error {
			zr.Close()
			return f.Close()
		})
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr, closer, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// headerIndex maps trimmed column names to their position. Unnamed pandas
// index columns are kept under their (empty) name and never looked up.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
