package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultDelimiter is the separator used by the milestone export.
const DefaultDelimiter = ';'

// DelimiterAuto asks the CSV source to sniff the separator from the header line.
const DelimiterAuto = "auto"

const sniffWindow = 64 * 1024

var sniffCandidates = []rune{';', ',', '\t', '|'}

// Record is one data line. Row is the 1-based line the record starts on,
// counting the header and any empty lines.
// Err is set when the line could not be parsed; the stream stays usable.
type Record struct {
	Row    int
	Fields []string
	Err    error
}

// Blank reports whether every cell is empty after trimming.
func (r Record) Blank() bool {
	for _, f := range r.Fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Source streams a tabular export. Next returns io.EOF after the last record.
type Source interface {
	Header() ([]string, error)
	Next() (Record, error)
	Close() error
}

type CSVOptions struct {
	// Delimiter is a single character, "\t", or DelimiterAuto. Empty means ';'.
	Delimiter string
	// Encoding is a WHATWG label such as "windows-1251". Empty means UTF-8.
	// A byte-order mark always takes precedence.
	Encoding string
	// LazyQuotes accepts stray quotes instead of reporting a malformed line.
	LazyQuotes bool
}

// ParseDelimiter resolves a delimiter option. The bool reports auto-detection.
func ParseDelimiter(v string) (rune, bool, error) {
	switch v {
	case "":
		return DefaultDelimiter, false, nil
	case DelimiterAuto:
		return 0, true, nil
	case `\t`, "tab", "\t":
		return '\t', false, nil
	}
	r := []rune(v)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, false, errors.Errorf("invalid delimiter %q", v)
	}
	return r[0], false, nil
}

// Decoder returns the transformer for the given charset label. The result
// strips a byte-order mark and honors it over the label.
func Decoder(label string) (transform.Transformer, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if l := strings.TrimSpace(label); l != "" && !strings.EqualFold(l, "utf-8") && !strings.EqualFold(l, "utf8") {
		enc, err := htmlindex.Get(l)
		if err != nil {
			return nil, errors.Wrapf(err, "unsupported encoding %q", l)
		}
		fallback = enc.NewDecoder()
	}
	return unicode.BOMOverride(fallback), nil
}

type csvSource struct {
	reader *csv.Reader
	closer io.Closer
	row    int
	header bool
}

// NewCSVSource decodes r and splits it into records. When r is an io.Closer
// it is closed together with the source.
func NewCSVSource(r io.Reader, opts CSVOptions) (Source, error) {
	delim, auto, err := ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}
	dec, err := Decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(transform.NewReader(r, dec), sniffWindow)
	if auto {
		delim, err = sniffDelimiter(br)
		if err != nil {
			return nil, errors.Wrap(err, "sniff delimiter")
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opts.LazyQuotes

	src := &csvSource{reader: cr}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src, nil
}

func (s *csvSource) Header() ([]string, error) {
	if s.header {
		return nil, errors.New("header already read")
	}
	s.header = true
	h, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	s.row, _ = s.reader.FieldPos(0)
	return h, nil
}

// Next numbers records by the physical line they start on; encoding/csv
// skips empty lines without returning them.
func (s *csvSource) Next() (Record, error) {
	fields, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.row = perr.StartLine
			return Record{Row: s.row, Fields: fields, Err: perr}, nil
		}
		return Record{}, err
	}
	s.row, _ = s.reader.FieldPos(0)
	return Record{Row: s.row, Fields: fields}, nil
}

func (s *csvSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// sniffDelimiter picks the candidate that occurs most often outside quotes
// on the first line. Ties go to the earlier candidate.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	b, err := br.Peek(sniffWindow)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, err
	}
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}

	counts := make(map[rune]int, len(sniffCandidates))
	quoted := false
	for _, r := range string(b) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}
	best, bestCount := rune(DefaultDelimiter), 0
	for _, c := range sniffCandidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best, nil
}

type xlsxSource struct {
	file *excelize.File
	rows *excelize.Rows
	row  int
}

// NewXLSXSource reads the named sheet, or the active sheet when sheet is empty.
// excelize.OpenReader buffers the whole workbook in memory; only rows are
// iterated lazily. Exports too large for that should be converted to CSV.
func NewXLSXSource(r io.Reader, sheet string) (Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		_ = f.Close()
		return nil, errors.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "read sheet %q", sheet)
	}
	return &xlsxSource{file: f, rows: rows}, nil
}

func (s *xlsxSource) Header() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	s.row = 1
	return s.rows.Columns()
}

func (s *xlsxSource) Next() (Record, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	s.row++
	cols, err := s.rows.Columns()
	if err != nil {
		return Record{Row: s.row, Err: err}, nil
	}
	return Record{Row: s.row, Fields: cols}, nil
}

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	fileErr := s.file.Close()
	if rowsErr != nil {
		return rowsErr
	}
	return fileErr
}
