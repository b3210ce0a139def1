package tables

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// LoadOption configures how a CSV file is loaded.
type LoadOption func(*loadOptions)

type loadOptions struct {
	name          string
	repairTrailer bool
}

// WithName overrides the table name derived from the file path.
func WithName(name string) LoadOption {
	return func(o *loadOptions) {
		o.name = name
	}
}

// WithTrailerRepair drops the single empty trailing field produced by
// exports that terminate every row with a comma.
func WithTrailerRepair() LoadOption {
	return func(o *loadOptions) {
		o.repairTrailer = true
	}
}

// Legacy exports arrive in a handful of encodings. The chain mirrors
// what the upstream tools emit: UTF-8 (optionally BOM-signed) first,
// then the Windows single-byte encodings.
var fallbackEncodings = []encoding.Encoding{
	charmap.ISO8859_1,
	charmap.Windows1252,
}

// Load reads a CSV file into a Table. Headers and cells are trimmed,
// and columns with blank or pandas-style "Unnamed" headers are dropped.
func Load(path string, opts ...LoadOption) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	options := &loadOptions{name: filepath.Base(path)}
	for _, opt := range opts {
		opt(options)
	}
	t, err := Parse(data, options.name, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse decodes raw CSV bytes into a Table.
func Parse(data []byte, name string, opts ...LoadOption) (*Table, error) {
	options := &loadOptions{name: name}
	for _, opt := range opts {
		opt(options)
	}

	text, err := decode(data)
	if err != nil {
		return nil, errors.NewParseError("csv", options.name, "undecodable content", err)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.WrapParse("csv", options.name, err)
	}
	if len(records) == 0 {
		return New(options.name, nil), nil
	}

	header := records[0]
	rows := records[1:]
	if options.repairTrailer {
		header = trimTrailer(header, 0)
	}

	// Decide which columns survive before touching any row
	keep := make([]int, 0, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, h)
	}

	t := New(options.name, columns)
	for _, rec := range rows {
		if options.repairTrailer {
			rec = trimTrailer(rec, len(header))
		}
		cells := make([]string, len(keep))
		for j, i := range keep {
			if i < len(rec) {
				cells[j] = strings.TrimSpace(rec[i])
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// trimTrailer drops one empty trailing field when the record overruns
// the header width (or, for the header itself, ends in a blank cell).
func trimTrailer(rec []string, width int) []string {
	if len(rec) == 0 {
		return rec
	}
	last := strings.TrimSpace(rec[len(rec)-1])
	if last != "" {
		return rec
	}
	if width == 0 || len(rec) > width {
		return rec[:len(rec)-1]
	}
	return rec
}

func decode(data []byte) (string, error) {
	// BOM-signed or plain UTF-8 first
	stripped, err := io.ReadAll(transform.NewReader(bytes.NewReader(data),
		unicode.BOMOverride(transform.Nop)))
	if err == nil && utf8.Valid(stripped) {
		return string(stripped), nil
	}

	var lastErr error
	for _, enc := range fallbackEncodings {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
		if err == nil {
			return string(decoded), nil
		}
		lastErr = err
	}
	return "", lastErr
}
