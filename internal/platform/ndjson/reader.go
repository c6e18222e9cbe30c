package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
)

const maxLineSize = 16 << 20

// Reader decodes one document per line, skipping blank, undecodable and
// oversized lines
type Reader struct {
	br      *bufio.Reader
	buf     []byte
	limit   int
	line    int
	skipped int
	err     error
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 256*1024), limit: maxLineSize}
}

// Next decodes the next valid line into dst; io.EOF at the end
func (rd *Reader) Next(dst any) error {
	if rd.err != nil {
		return rd.err
	}
	for {
		b, oversized, err := rd.readLine()
		if err == io.EOF {
			rd.err = io.EOF
			return io.EOF
		}
		if err != nil {
			rd.err = perr.Wrapf(err, perr.ErrorCodeIO, "ndjson read line %d", rd.line+1)
			return rd.err
		}
		rd.line++
		if oversized {
			rd.skipped++
			logger.Named("ndjson").Warn().Int("line", rd.line).Int("limit", rd.limit).Msg("skipping oversized line")
			continue
		}
		b = bytes.TrimSpace(b)
		if len(b) == 0 {
			continue
		}
		if err := json.Unmarshal(b, dst); err != nil {
			rd.skipped++
			logger.Named("ndjson").Warn().Int("line", rd.line).Err(err).Msg("skipping corrupt line")
			continue
		}
		return nil
	}
}

// readLine returns the next line without buffering more than limit bytes of it.
// A longer line is consumed to its newline and reported as oversized.
func (rd *Reader) readLine() ([]byte, bool, error) {
	rd.buf = rd.buf[:0]
	var read, oversized bool
	for {
		chunk, err := rd.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if !oversized && len(rd.buf)+len(chunk) > rd.limit {
				oversized = true
				rd.buf = rd.buf[:0]
			}
			if !oversized {
				rd.buf = append(rd.buf, chunk...)
			}
		}
		switch {
		case err == nil:
			return rd.buf, oversized, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF && read:
			return rd.buf, oversized, nil
		default:
			return nil, false, err
		}
	}
}

// Skipped returns how many non-blank lines failed to decode or exceeded the line limit
func (rd *Reader) Skipped() int { return rd.skipped }

// ScanStats summarises a ScanFile pass
type ScanStats struct {
	Records int
	Skipped int
}

// ScanFile decodes every valid line of path into a fresh T and calls fn.
// A missing file is an empty log. fn returning an error stops the scan.
func ScanFile[T any](path string, fn func(T) error) (ScanStats, error) {
	var st ScanStats
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, perr.Wrapf(err, perr.ErrorCodeIO, "ndjson open %s", path)
	}
	defer f.Close()

	rd := NewReader(f)
	for {
		var v T
		err := rd.Next(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			st.Skipped = rd.Skipped()
			return st, err
		}
		st.Records++
		if err := fn(v); err != nil {
			st.Skipped = rd.Skipped()
			return st, err
		}
	}
	st.Skipped = rd.Skipped()
	return st, nil
}
