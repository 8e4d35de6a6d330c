package filetype

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// CSVProbe detects structurally valid CSV content. It rejects quickly
// unless the filename or declared MIME hints at CSV or the head buffer
// looks like text, then samples a bounded window and requires a stable
// column count across a minimum number of rows for each candidate
// delimiter.
type CSVProbe struct{}

func (p *CSVProbe) Detect(ctx context.Context, content io.ReadSeeker, fileName, declaredMime string, head []byte, opts Options) (blobgate.TypeCode, bool, error) {
	if !hintsCSV(fileName, declaredMime) && !looksLikeText(head, opts.MaxControlCharRatio) {
		return blobgate.TypeUnknown, false, nil
	}
	if !hasAnyDelimiter(head, opts.CSVDelimiters) {
		return blobgate.TypeUnknown, false, nil
	}

	sample := make([]byte, opts.CSVSampleBytes)
	n, err := io.ReadFull(content, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return blobgate.TypeUnknown, false, err
	}
	sample = trimPartialLastLine(sample[:n], n == opts.CSVSampleBytes)

	for _, delim := range opts.CSVDelimiters {
		if stableColumns(string(sample), delim, opts.CSVMinRows, opts.CSVMinCols) {
			return blobgate.TypeCSV, true, nil
		}
	}
	return blobgate.TypeUnknown, false, nil
}

// stableColumns parses the sample with one delimiter and accepts only
// when the header has at least minCols columns and at least minRows
// data rows repeat exactly that count.
func stableColumns(sample string, delim rune, minRows, minCols int) bool {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1 // count manually; a mismatch is a rejection, not an error
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil || len(header) < minCols {
		return false
	}
	expected := len(header)

	rows := 0
	for rows < 50 {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
		if len(rec) != expected {
			return false
		}
		rows++
	}
	return rows >= minRows
}

func hintsCSV(fileName, declaredMime string) bool {
	if strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(declaredMime)) {
	case "text/csv", "application/csv", "application/vnd.ms-excel":
		return true
	}
	return false
}

// looksLikeText accepts content with no NUL bytes and a low ratio of
// control characters (tab, CR and LF excluded).
func looksLikeText(head []byte, maxControlRatio float64) bool {
	if len(head) == 0 {
		return false
	}
	controls := 0
	for _, b := range head {
		if b == 0 {
			return false
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			controls++
		}
	}
	return float64(controls)/float64(len(head)) < maxControlRatio
}

func hasAnyDelimiter(head []byte, delims []rune) bool {
	for _, b := range head {
		for _, d := range delims {
			if rune(b) == d {
				return true
			}
		}
	}
	return false
}

// trimPartialLastLine drops a trailing partial record when the sample
// filled the whole window, so a row cut mid-line does not fail the
// stable-column check.
func trimPartialLastLine(sample []byte, truncated bool) []byte {
	if !truncated {
		return sample
	}
	if i := strings.LastIndexByte(string(sample), '\n'); i >= 0 {
		return sample[:i+1]
	}
	return sample
}
