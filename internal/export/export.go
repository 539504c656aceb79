// Package export encodes query results into downloadable formats. Encoders
// are pure functions over an in-memory result; row caps are enforced
// upstream, so nothing here streams.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/query"
)

// Format names a supported result encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat normalizes a user-supplied format name. Empty input selects
// CSV.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported format %q, expected csv or parquet", value)
	}
}

// ContentType returns the MIME type used when serving the encoded bytes.
func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/octet-stream"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatParquet {
		return "parquet"
	}
	return "csv"
}

// Encode renders result in the requested format.
func Encode(format Format, result query.Result) ([]byte, error) {
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, result); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatParquet:
		return EncodeParquet(result)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
