package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inferloop/esrnn/internal/series"
)

// readBatch parses one series per record: the series id, then exogenous
// features, then the observations. Lines starting with '#' are skipped.
func readBatch(r io.Reader, exogenousSize int) (*series.Batch, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("input contains no series")
	}

	idxs := make([]int, 0, len(records))
	y := make([][]float64, 0, len(records))
	var categories [][]float64

	for line, record := range records {
		if len(record) < 2+exogenousSize {
			return nil, fmt.Errorf("record %d has %d fields, need at least %d", line+1, len(record), 2+exogenousSize)
		}

		idx, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid series id %q: %w", line+1, record[0], err)
		}
		idxs = append(idxs, idx)

		values, err := parseFloats(record[1:])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line+1, err)
		}
		if exogenousSize > 0 {
			categories = append(categories, values[:exogenousSize])
		}
		y = append(y, values[exogenousSize:])
	}

	return series.NewBatch(idxs, y, categories)
}

func readBatchFile(path string, exogenousSize int) (*series.Batch, error) {
	if path == "-" {
		return readBatch(os.Stdin, exogenousSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return readBatch(f, exogenousSize)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q in column %d: %w", field, i+2, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseSeasonal reads a comma separated list of positive seasonal factors.
func parseSeasonal(list string) ([]float64, error) {
	if list == "" {
		return nil, nil
	}
	return parseFloats(strings.Split(list, ","))
}
