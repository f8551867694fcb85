package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxLineBytes is the maximum length of a single NDJSON line, per spec.md §6.
// A connection that sends a longer line is considered malformed and closed.
const MaxLineBytes = 1 << 20 // 1 MiB

// Encode marshals v and appends the trailing newline NDJSON framing requires.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	b = append(b, '\n')
	return b, nil
}

// DecodeCommand decodes a single NDJSON line (without its trailing newline)
// into a [Command]. Unknown fields are ignored; a missing or malformed "cmd"
// still decodes successfully (the empty CommandName), leaving validation to
// the dispatcher per spec.md §4.6.
func DecodeCommand(line []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, fmt.Errorf("wire: decode command: %w", err)
	}
	return cmd, nil
}

// LineReader frames an io.Reader into NDJSON lines bounded by [MaxLineBytes].
// It wraps [bufio.Scanner] with a buffer sized to the cap so that a single
// oversized line is reported as an error instead of silently truncated.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader returns a [LineReader] over r.
func NewLineReader(r io.Reader) *LineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxLineBytes)
	return &LineReader{scanner: s}
}

// ReadLine returns the next line with its trailing newline stripped. It
// returns io.EOF when the underlying reader is exhausted, and a non-EOF error
// when a line exceeds [MaxLineBytes] or the reader fails.
func (r *LineReader) ReadLine() ([]byte, error) {
	if r.scanner.Scan() {
		return r.scanner.Bytes(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("wire: read line: %w", err)
	}
	return nil, io.EOF
}
