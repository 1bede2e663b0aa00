package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadError reports a failure to open or read a log source
type ReadError struct {
	Op   string
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to %s log file %s: %v", e.Op, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// LineReader yields the lines of a log source one at a time.
// It reads incrementally and is not restartable; open the source again to
// re-read it.
type LineReader struct {
	name   string
	closer io.Closer
	reader *bufio.Reader
	line   string
	err    error
	done   bool
}

// Open opens the file at path for line-by-line reading
func Open(path string) (*LineReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Op: "open", Path: path, Err: err}
	}

	// A directory opens fine on most platforms but fails on the first read
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ReadError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		file.Close()
		return nil, &ReadError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	return NewLineReader(file, path), nil
}

// NewLineReader creates a line reader over r. The name is used in errors.
// If r is also an io.Closer, Close closes it.
func NewLineReader(r io.Reader, name string) *LineReader {
	lr := &LineReader{
		name:   name,
		reader: bufio.NewReader(r),
	}
	if c, ok := r.(io.Closer); ok {
		lr.closer = c
	}
	return lr
}

// Next advances to the next line. It returns false at end of input or on a
// read error; check Err afterwards.
func (lr *LineReader) Next() bool {
	if lr.done {
		return false
	}

	line, err := lr.reader.ReadString('\n')
	if err != nil {
		lr.done = true
		if err != io.EOF {
			lr.err = &ReadError{Op: "read", Path: lr.name, Err: err}
			return false
		}
		// Final line without a trailing newline
		if line == "" {
			return false
		}
	}

	// Remove trailing newline
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}

	// Remove carriage return if present
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	lr.line = line
	return true
}

// Line returns the current line without its line terminator
func (lr *LineReader) Line() string {
	return lr.line
}

// Err returns the first read error, if any
func (lr *LineReader) Err() error {
	return lr.err
}

// Name returns the source name
func (lr *LineReader) Name() string {
	return lr.name
}

// Close releases the underlying file. It is safe to call more than once.
func (lr *LineReader) Close() error {
	lr.done = true
	if lr.closer == nil {
		return nil
	}
	err := lr.closer.Close()
	lr.closer = nil
	return err
}
