package signin

import (
	"context"
	"io"
	"regexp"
	"sync"
	"time"
)

// noMatch is returned by expect when output ended without any pattern matching.
const noMatch = -1

// expecter reads a child's terminal output in the background and matches
// it against prompt patterns one wait point at a time.
type expecter struct {
	chunks <-chan []byte
	stop   chan struct{}
	once   sync.Once
	buf    []byte
	eof    bool
}

func newExpecter(r io.Reader) *expecter {
	chunks := make(chan []byte, 16)
	stop := make(chan struct{})

	go func() {
		defer close(chunks)
		b := make([]byte, 4096)
		for {
			n, err := r.Read(b)
			if n > 0 {
				c := make([]byte, n)
				copy(c, b[:n])
				select {
				case chunks <- c:
				case <-stop:
					return
				}
			}
			// A pty master reports EIO once the child side closes; any read
			// error ends the output.
			if err != nil {
				return
			}
		}
	}()

	return &expecter{chunks: chunks, stop: stop}
}

// expect blocks until one of patterns matches the pending output, the output
// ends, timeout elapses or ctx is done. It returns the index of the pattern
// that matched earliest in the output and the text preceding the match; the
// matched text is consumed. At end of output it returns noMatch with all
// remaining text.
func (e *expecter) expect(ctx context.Context, timeout time.Duration, patterns ...*regexp.Regexp) (int, string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if i, before, ok := e.match(patterns); ok {
			return i, before, nil
		}
		if e.eof {
			out := string(e.buf)
			e.buf = nil
			return noMatch, out, nil
		}

		select {
		case c, ok := <-e.chunks:
			if !ok {
				e.eof = true
				continue
			}
			e.buf = append(e.buf, c...)
		case <-timer.C:
			return noMatch, string(e.buf), ErrTimeout
		case <-ctx.Done():
			return noMatch, string(e.buf), ctx.Err()
		}
	}
}

func (e *expecter) match(patterns []*regexp.Regexp) (int, string, bool) {
	best, start, end := noMatch, 0, 0
	for i, p := range patterns {
		loc := p.FindIndex(e.buf)
		if loc == nil {
			continue
		}
		if best == noMatch || loc[0] < start {
			best, start, end = i, loc[0], loc[1]
		}
	}
	if best == noMatch {
		return noMatch, "", false
	}

	before := string(e.buf[:start])
	e.buf = e.buf[end:]
	return best, before, true
}

func (e *expecter) close() {
	e.once.Do(func() { close(e.stop) })
}
