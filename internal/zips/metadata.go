// Package zips provides ZIP-code normalization and borough/neighborhood metadata.
//
// The metadata source stores zip codes numerically while the polygon source
// stores them as strings; both are folded into one canonical string form at
// load time so every later comparison is a plain map lookup.
package zips

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Metadata labels a ZIP code with its borough and neighborhood.
type Metadata struct {
	Borough      string `json:"borough"`
	Neighborhood string `json:"neighborhood"`
}

// Normalize converts any raw zip representation into the canonical form:
// numeric values become zero-padded five-digit strings ("7093" -> "07093",
// "10001.0" -> "10001"); anything non-numeric is returned trimmed as-is.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if n, err := strconv.Atoi(s); err == nil {
		return fmt.Sprintf("%05d", n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return fmt.Sprintf("%05d", int(f))
	}
	return s
}

// MetadataTable is an immutable zip -> metadata lookup.
type MetadataTable struct {
	byZip map[string]Metadata
}

// LoadMetadata reads "zip,borough,neighborhood" rows from r. The header row is
// detected by a non-numeric first field and skipped.
func LoadMetadata(r io.Reader) (*MetadataTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	byZip := make(map[string]Metadata)

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading zip metadata: %w", err)
		}
		if len(record) < 3 {
			continue
		}

		zip := Normalize(record[0])
		if first {
			first = false
			if _, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64); err != nil {
				continue // header row
			}
		}

		byZip[zip] = Metadata{
			Borough:      strings.TrimSpace(record[1]),
			Neighborhood: strings.TrimSpace(record[2]),
		}
	}

	if len(byZip) == 0 {
		return nil, fmt.Errorf("zip metadata source contained no usable rows")
	}

	return &MetadataTable{byZip: byZip}, nil
}

// Lookup returns the metadata for a canonical zip string.
func (t *MetadataTable) Lookup(zip string) (Metadata, bool) {
	m, ok := t.byZip[zip]
	return m, ok
}

// Len returns the number of loaded zip codes.
func (t *MetadataTable) Len() int {
	return len(t.byZip)
}
