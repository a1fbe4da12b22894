// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"errors"
	"io"
	"strings"
	"testing"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/bridge/model"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func newTrackingStream(s string) (*EventStream, *trackingBody) {
	body := &trackingBody{Reader: strings.NewReader(s)}
	return NewEventStream(body, "test"), body
}

func TestEventStream_DecodesInOrder(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"session.start","sessionId":"s1","timestamp":1,"model":"m"}`,
		`{"type":"text","sessionId":"s1","timestamp":2,"content":"hi","partial":false}`,
		`{"type":"session.complete","sessionId":"s1","timestamp":3,"success":true}`,
	}, "\n") + "\n"

	s, body := newTrackingStream(input)
	var types []model.EventType
	for s.Next() {
		types = append(types, s.Event().Type)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	want := []model.EventType{model.EventSessionStart, model.EventText, model.EventSessionComplete}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
	if body.closed != 1 {
		t.Errorf("body closed %d times, want 1", body.closed)
	}
	if s.Next() {
		t.Error("Next() after end = true")
	}
}

func TestEventStream_SkipsBlankLines(t *testing.T) {
	var b strings.Builder
	b.WriteString(strings.Repeat("\n", 10000))
	b.WriteString(`{"type":"text","sessionId":"s1","timestamp":1,"content":"x"}` + "\n")
	b.WriteString(strings.Repeat("  \r\n", 50))

	s, _ := newTrackingStream(b.String())
	events, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if s.Line() != 10051 {
		t.Errorf("Line() = %d, want 10051", s.Line())
	}
}

func TestEventStream_MalformedLineStops(t *testing.T) {
	input := `{"type":"text","content":"a"}` + "\n" +
		"\n" +
		`{"type":"text","content":"b"}` + "\n" +
		`{"type":"text",` + "\n" +
		`{"type":"text","content":"never"}` + "\n"

	s, body := newTrackingStream(input)
	var got []string
	for s.Next() {
		got = append(got, s.Event().Data.(*model.Text).Content)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("events before failure = %v, want [a b]", got)
	}

	err := s.Err()
	if !kerrors.Is(err, kerrors.StreamDecodeFailed) {
		t.Fatalf("Err() = %v, want StreamDecodeFailed", err)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("error %q does not name line 4", err)
	}
	if body.closed != 1 {
		t.Errorf("body closed %d times, want 1", body.closed)
	}
}

func TestEventStream_MissingTypeIsDecodeFailure(t *testing.T) {
	s, _ := newTrackingStream(`{"content":"x"}` + "\n")
	if s.Next() {
		t.Fatal("Next() = true for record without type")
	}
	if !errors.Is(s.Err(), model.ErrMissingType) {
		t.Errorf("Err() = %v, want ErrMissingType in chain", s.Err())
	}
}

func TestEventStream_FinalLineWithoutNewline(t *testing.T) {
	s, body := newTrackingStream(`{"type":"text","content":"a"}` + "\n" + `{"type":"error","message":"boom"}`)
	events, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(events) != 2 || events[1].Type != model.EventError {
		t.Fatalf("events = %+v", events)
	}
	if body.closed != 1 {
		t.Errorf("body closed %d times, want 1", body.closed)
	}
}

type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestEventStream_ReadErrorIsConnectionFailure(t *testing.T) {
	body := &trackingBody{Reader: &failingReader{
		data: `{"type":"text","content":"a"}` + "\n" + `{"type":"te`,
		err:  errors.New("connection reset by peer"),
	}}
	s := NewEventStream(body, "test")

	events, err := s.Collect()
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
	if !kerrors.Is(err, kerrors.ConnectionFailed) {
		t.Fatalf("err = %v, want ConnectionFailed", err)
	}
	if kerrors.Is(err, kerrors.StreamDecodeFailed) {
		t.Errorf("partial line was decoded: %v", err)
	}
}

func TestEventStream_AllBreakCloses(t *testing.T) {
	input := strings.Repeat(`{"type":"text","content":"a"}`+"\n", 5)
	s, body := newTrackingStream(input)

	n := 0
	for _, err := range s.All() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("consumed %d events, want 2", n)
	}
	if body.closed != 1 {
		t.Errorf("body closed %d times, want 1", body.closed)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if body.closed != 1 {
		t.Errorf("Close is not idempotent: closed %d times", body.closed)
	}
}
