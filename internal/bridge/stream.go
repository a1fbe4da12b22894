// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/bridge/model"
	"kyco/cli/internal/metrics"
)

// EventStream lazily decodes an NDJSON response body, one event per line.
//
// Use it like bufio.Scanner:
//
//	for s.Next() {
//		ev := s.Event()
//	}
//	if err := s.Err(); err != nil { ... }
//
// Blank lines are skipped. A malformed line ends the stream with a
// StreamDecodeFailed error naming the line. The body is closed once the
// stream ends; Close may be called early to abandon it.
type EventStream struct {
	r       *bufio.Reader
	body    io.Closer
	backend string

	line int
	cur  model.Event
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// NewEventStream wraps body. backend labels metrics and may be empty.
func NewEventStream(body io.ReadCloser, backend string) *EventStream {
	return &EventStream{
		r:       bufio.NewReaderSize(body, 64<<10),
		body:    body,
		backend: backend,
	}
}

// Next advances to the next event. It returns false at end of stream or on error.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	for {
		raw, readErr := s.r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return s.fail(kerrors.Wrap(kerrors.ConnectionFailed,
				fmt.Sprintf("read event stream after line %d", s.line), readErr))
		}
		if len(raw) > 0 {
			s.line++
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			if readErr != nil {
				s.finish()
				return false
			}
			continue
		}

		ev, err := model.DecodeEvent(line)
		if err != nil {
			metrics.StreamDecodeErrors.WithLabelValues(s.label()).Inc()
			return s.fail(kerrors.Wrap(kerrors.StreamDecodeFailed,
				fmt.Sprintf("decode event on line %d", s.line), err))
		}
		metrics.StreamEvents.WithLabelValues(s.label(), string(ev.Type)).Inc()
		s.cur = ev
		if readErr != nil {
			// Last line had no trailing newline; deliver it, end on the next call.
			s.done = true
			s.Close()
		}
		return true
	}
}

// Event returns the event produced by the most recent successful Next.
func (s *EventStream) Event() model.Event { return s.cur }

// Err returns the error that terminated the stream, or nil on clean end.
func (s *EventStream) Err() error { return s.err }

// Line returns the number of lines consumed so far.
func (s *EventStream) Line() int { return s.line }

// Close releases the response body. It is safe to call more than once.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}

// All returns an iterator over the remaining events. A terminating error is
// yielded once as the final pair. Breaking out of the loop closes the stream.
func (s *EventStream) All() iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.cur, nil) {
				return
			}
		}
		if s.err != nil {
			yield(model.Event{}, s.err)
		}
	}
}

// Collect drains the stream into a slice.
func (s *EventStream) Collect() ([]model.Event, error) {
	var out []model.Event
	for ev, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *EventStream) fail(err error) bool {
	s.err = err
	s.finish()
	return false
}

func (s *EventStream) finish() {
	s.done = true
	s.cur = model.Event{}
	s.Close()
}

func (s *EventStream) label() string {
	if s.backend == "" {
		return "unknown"
	}
	return s.backend
}
