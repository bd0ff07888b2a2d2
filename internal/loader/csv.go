package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/f1dq/internal/contracts"
)

// CSVSource reads <table>_clean.csv or <table>.csv from a directory
type CSVSource struct {
	dir string
}

// NewCSVSource creates a CSV directory source
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Name returns the source description
func (s *CSVSource) Name() string {
	return "csv:" + s.dir
}

// Path returns the file that backs table, preferring the cleaned variant
func (s *CSVSource) Path(table string) (string, error) {
	for _, name := range []string{table + "_clean.csv", table + ".csv"} {
		path := filepath.Join(s.dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w: %s (looked for %s_clean.csv and %s.csv in %s)", ErrTableMissing, table, table, table, s.dir)
}

// Load reads the table file into a relation
func (s *CSVSource) Load(ctx context.Context, table string) (*contracts.Relation, error) {
	path, err := s.Path(table)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(ctx, table, f)
}

// ReadCSV parses a header row plus data rows from r
func ReadCSV(ctx context.Context, table string, r io.Reader) (*contracts.Relation, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file, header row required", table)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", table, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	columns[0] = strings.TrimPrefix(columns[0], "\ufeff")

	rel := contracts.NewRelation(table, columns)
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", table, err)
		}

		row := make([]contracts.Value, len(record))
		for i, raw := range record {
			row[i] = Cell(raw)
		}
		if err := rel.Append(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return rel, nil
}
