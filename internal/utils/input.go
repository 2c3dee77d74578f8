package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

var quitters = []string{"q", "quit", "exit"}

// LineReader reads user input line by line in the background, so that
// several consumers can wait for the next line while remaining cancellable.
type LineReader struct {
	lines chan string
	errs  chan error
}

// NewLineReader starts reading r. The reading goroutine ends at the end of r.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		lines: make(chan string),
		errs:  make(chan error, 1),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- scanner.Text()
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.errs <- err
		close(lr.lines)
	}()
	return lr
}

// ReadUserInput returns the next trimmed line. ErrUserInitiatedExit is
// returned at the end of input or if the user types a quit command.
func (lr *LineReader) ReadUserInput(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, open := <-lr.lines:
		if !open {
			err := <-lr.errs
			lr.errs <- err
			if err == io.EOF {
				return "", ErrUserInitiatedExit
			}
			return "", fmt.Errorf("failed to read user input: %w", err)
		}
		trimmedInput := strings.TrimSpace(line)
		if slices.Contains(quitters, trimmedInput) {
			return "", ErrUserInitiatedExit
		}
		return trimmedInput, nil
	}
}
