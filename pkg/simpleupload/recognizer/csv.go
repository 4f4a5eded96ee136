package recognizer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// CSVMinRows is the number of rows, header included, a file needs before
	// it is accepted as CSV.
	CSVMinRows = 5

	// CSVMaxLineLength bounds each data line. The header line is unbounded.
	CSVMaxLineLength = 4000

	// MimeTypeCSV is reported for recognized files
	MimeTypeCSV = "text/csv"
)

// CSVSeparators are the candidate separators in order of preference.
var CSVSeparators = []rune{',', ';', '|', ':', '\t'}

// CSVRecognizer refines text/plain into text/csv when every row of the file
// has the same number of columns. The reported encoding names the separator.
type CSVRecognizer struct{}

// NewCSVRecognizer creates a CSVRecognizer.
func NewCSVRecognizer() Recognizer {
	return CSVRecognizer{}
}

func (CSVRecognizer) Name() string {
	return "csv"
}

func (CSVRecognizer) CanImprove(mimeType string) bool {
	return mimeType == "text/plain"
}

func (CSVRecognizer) Recognize(ctx context.Context, f File, current Result) (Result, error) {
	rc, err := f.Open()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	header, err := readLine(br, 0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, ErrNotRecognized
		}
		return Result{}, err
	}

	separator, columns := guessSeparator(header)
	if columns < 2 {
		return Result{}, ErrNotRecognized
	}

	rows := 1
	for {
		if rows%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		record, err := readRecord(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, err
		}
		if countFields(record, separator) != columns {
			return Result{}, ErrNotRecognized
		}
		rows++
	}

	if rows < CSVMinRows {
		return Result{}, ErrNotRecognized
	}

	return Result{
		MimeType: MimeTypeCSV,
		Encoding: "Separator: " + string(separator),
	}, nil
}

// guessSeparator parses line with every candidate separator and returns the
// one producing the most fields. Ties go to the earlier candidate.
func guessSeparator(line string) (rune, int) {
	var best rune
	bestCount := 0
	for _, sep := range CSVSeparators {
		if n := countFields(line, sep); n > bestCount {
			best = sep
			bestCount = n
		}
	}
	return best, bestCount
}

// countFields parses one CSV record. A blank record has a single empty field.
func countFields(record string, sep rune) int {
	if record == "" {
		return 1
	}
	r := csv.NewReader(strings.NewReader(record))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return 0
	}
	return len(fields)
}

// readRecord reads the next data record. Lines are joined while a quoted
// field is still open. Every physical line is bounded by CSVMaxLineLength.
func readRecord(br *bufio.Reader) (string, error) {
	record, err := readLine(br, CSVMaxLineLength)
	if err != nil {
		return "", err
	}
	for strings.Count(record, `"`)%2 == 1 {
		next, err := readLine(br, CSVMaxLineLength)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		record += "\n" + next
	}
	return record, nil
}

// readLine returns the next line without its terminator. A limit of zero
// means unbounded. io.EOF is returned only when no line is left.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := br.ReadLine()
		if errors.Is(err, io.EOF) && sb.Len() == 0 {
			return "", io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		sb.Write(chunk)
		if limit > 0 && sb.Len() > limit {
			return "", fmt.Errorf("%w: line longer than %d bytes", ErrNotRecognized, limit)
		}
		if !isPrefix || err != nil {
			return sb.String(), nil
		}
	}
}
