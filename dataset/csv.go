package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// ============================================================================
// CSV READER — Raw bytes → Dataset
// ============================================================================
// Consumer reads the file from wherever it lives (upload, disk, S3).
// UTF-8 is tried first; anything that is not valid UTF-8 is decoded as
// Windows-1252, which covers the Latin-1 exports spreadsheet tools produce.
// ============================================================================

// ReadCSV parses CSV data into a Dataset. Malformed rows are skipped.
func ReadCSV(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return ParseCSV(data)
}

// ParseCSV parses CSV bytes into a Dataset.
func ParseCSV(data []byte) (*Dataset, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("could not decode CSV, try saving as UTF-8: %w", err)
		}
		log.Debug().Msg("CSV is not valid UTF-8, decoded as Windows-1252")
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	var rows [][]string
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("skipped malformed CSV rows")
	}

	return fromRows(headers, rows)
}

// Load reads a dataset from disk, choosing the reader by file extension.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadExcel(f, "")
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}
