package supervisor

import (
	"bufio"
	"io"
	"strings"
)

// LineReader reads operator input in the background so a console read can be abandoned
// on timeout without leaving a blocked read behind
type LineReader struct {
	lines chan string
}

func NewLineReader(r io.Reader) *LineReader {
	l := &LineReader{lines: make(chan string, 16)}
	go l.scan(r)
	return l
}

func (l *LineReader) scan(r io.Reader) {
	defer close(l.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.lines <- strings.TrimSpace(scanner.Text())
	}
}

// Lines is closed when the input reaches EOF
func (l *LineReader) Lines() <-chan string {
	return l.lines
}

// Drain discards lines typed while no console session was waiting for them
func (l *LineReader) Drain() {
	for {
		select {
		case _, ok := <-l.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
