package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileSource implements LineSource for a single log file.
type FileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// OpenFile opens path for reading.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return newFileSource(path, f), nil
}

func newFileSource(path string, f *os.File) *FileSource {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line size
	return &FileSource{path: path, file: f, scanner: scanner}
}

// Next returns the next line with any trailing carriage return removed.
func (s *FileSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if s.scanner == nil {
		return "", io.EOF
	}

	if s.scanner.Scan() {
		s.line++
		return strings.TrimSuffix(s.scanner.Text(), "\r"), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", s.path, err)
	}
	return "", io.EOF
}

// Path returns the file being read.
func (s *FileSource) Path() string {
	return s.path
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.scanner = nil
	return err
}

// SliceSource implements LineSource over lines already in memory.
type SliceSource struct {
	lines []string
	next  int
}

// NewSliceSource returns a source yielding lines in order.
func NewSliceSource(lines []string) *SliceSource {
	return &SliceSource{lines: lines}
}

// Next returns the next line, or io.EOF once all lines have been returned.
func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}

// SplitLines splits text on newlines, dropping a final empty line.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
