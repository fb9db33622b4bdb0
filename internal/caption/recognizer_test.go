package caption

import (
	"context"
	"errors"
	"testing"
	"time"

	"interview_room/native/internal/domain"
)

func collect(t *testing.T, events <-chan domain.RecognitionEvent) []domain.RecognitionEvent {
	t.Helper()
	var out []domain.RecognitionEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("run did not end")
		}
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent([]byte(`{"transcript":"hello","final":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.Results) != 1 || ev.Results[0].Transcript != "hello" || !ev.Results[0].Final {
		t.Errorf("unexpected event: %+v", ev)
	}

	ev, err = parseEvent([]byte(`{"results":[{"transcript":"a"},{"transcript":"b","final":true}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.Results) != 2 || ev.Results[0].Final || !ev.Results[1].Final {
		t.Errorf("unexpected event: %+v", ev)
	}

	if _, err := parseEvent([]byte("not json")); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestCommandRecognizer_RunEndsWhenProcessExits(t *testing.T) {
	rec, err := NewCommandRecognizer("sh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.args = []string{"-c", `printf '{"transcript":"hel"}\ngarbage\n{"transcript":"hello","final":true}\n'`}

	events, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got := collect(t, events)

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if finalized(got[0]) != "" || finalized(got[1]) != "hello" {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestCommandRecognizer_MissingBinary(t *testing.T) {
	rec, err := NewCommandRecognizer("definitely-not-a-recognizer-binary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rec.Start(context.Background()); !errors.Is(err, domain.ErrRecognitionFailure) {
		t.Errorf("expected ErrRecognitionFailure, got %v", err)
	}

	if _, err := NewCommandRecognizer("   "); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestLineRecognizer_EachLineIsFinal(t *testing.T) {
	lines := make(chan string, 2)
	lines <- "tell me about yourself"
	lines <- "sure"
	close(lines)

	rec := NewLineRecognizer(lines)
	got := collect(t, mustStart(t, rec))

	if len(got) != 2 || finalized(got[0]) != "tell me about yourself" || finalized(got[1]) != "sure" {
		t.Errorf("unexpected events: %+v", got)
	}

	if _, err := rec.Start(context.Background()); !errors.Is(err, domain.ErrRecognitionFailure) {
		t.Errorf("expected ErrRecognitionFailure once input is closed, got %v", err)
	}
}

func TestLineRecognizer_CancelEndsRunWithoutConsuming(t *testing.T) {
	lines := make(chan string, 1)
	rec := NewLineRecognizer(lines)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := rec.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	collect(t, events)

	lines <- "after cancel"
	got := collect(t, func() <-chan domain.RecognitionEvent {
		close(lines)
		return mustStart(t, rec)
	}())
	if len(got) != 1 || finalized(got[0]) != "after cancel" {
		t.Errorf("expected line to reach the next run, got %+v", got)
	}
}

func mustStart(t *testing.T, rec domain.Recognizer) <-chan domain.RecognitionEvent {
	t.Helper()
	events, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return events
}
