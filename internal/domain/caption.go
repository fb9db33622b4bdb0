package domain

import "sync"

// CaptionLine is one finalized utterance attributed to a speaker.
type CaptionLine struct {
	Sender Role
	Text   string
}

// Transcript is the ordered, append-only caption log of one session.
// It is safe for concurrent use.
type Transcript struct {
	mu    sync.Mutex
	lines []CaptionLine
}

// Append adds a line at the end.
func (t *Transcript) Append(line CaptionLine) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
}

// Lines returns a copy of all lines in order.
func (t *Transcript) Lines() []CaptionLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CaptionLine, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// RecognitionResult is one hypothesis produced by a recognizer.
type RecognitionResult struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

// RecognitionEvent groups the results reported together by a recognizer.
type RecognitionEvent struct {
	Results []RecognitionResult
}
