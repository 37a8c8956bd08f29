package pipeline

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/biscayne-labs/resilience-cli/internal/fetcher"
)

// SideTable maps a normalized identifier to a numeric value. It is built once
// from an auxiliary dataset and treated as immutable for a classification pass.
type SideTable map[string]float64

// SideTableBinding configures how a delimited side table joins to a layer.
type SideTableBinding struct {
	IDColumn    string `yaml:"id_column" mapstructure:"id_column"`       // header name of the identifier column
	ValueColumn string `yaml:"value_column" mapstructure:"value_column"` // header name of the numeric column
	KeyPrefix   string `yaml:"key_prefix" mapstructure:"key_prefix"`     // literal prefix stripped from identifiers
	Property    string `yaml:"property" mapstructure:"property"`         // enriched property written on joined features
}

// ParseSideTable reads header-led delimited text into a SideTable. Quoted
// fields containing the delimiter are honored by the underlying CSV reader.
// If either configured column is absent from the header the result is an
// empty table, not an error. Rows with an empty normalized key or a
// non-finite value are silently skipped.
func ParseSideTable(ctx context.Context, r io.Reader, b SideTableBinding) (SideTable, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
	}

	return SideTableFromRows(header, rows, b), nil
}

// SideTableFromRows builds a SideTable from an already-parsed header and data
// rows. This is the shared core behind the CSV and XLSX loaders.
func SideTableFromRows(header []string, rows [][]string, b SideTableBinding) SideTable {
	table := make(SideTable)

	idIdx, valIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case b.IDColumn:
			idIdx = i
		case b.ValueColumn:
			valIdx = i
		}
	}
	// Missing columns make the loader inert rather than failing.
	if idIdx < 0 || valIdx < 0 {
		return table
	}

	for _, row := range rows {
		if idIdx >= len(row) || valIdx >= len(row) {
			continue
		}
		key := strings.TrimPrefix(strings.TrimSpace(row[idIdx]), b.KeyPrefix)
		if key == "" {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(row[valIdx]), 64)
		if err != nil {
			continue
		}
		if _, ok := finite(val); !ok {
			continue
		}
		table[key] = val
	}

	return table
}
