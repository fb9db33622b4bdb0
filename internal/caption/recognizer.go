package caption

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"interview_room/native/internal/domain"
)

var (
	_ domain.Recognizer = (*CommandRecognizer)(nil)
	_ domain.Recognizer = (*LineRecognizer)(nil)
)

// CommandRecognizer runs an external speech-to-text process per
// recognition run. The process writes one JSON object per line, either a
// single result {"transcript":"...","final":true} or an event
// {"results":[...]}. The run ends when the process exits.
type CommandRecognizer struct {
	name string
	args []string
}

// NewCommandRecognizer parses a whitespace separated command line.
func NewCommandRecognizer(cmdline string) (*CommandRecognizer, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("empty recognizer command")
	}
	return &CommandRecognizer{name: fields[0], args: fields[1:]}, nil
}

func (r *CommandRecognizer) Start(ctx context.Context) (<-chan domain.RecognitionEvent, error) {
	cmd := exec.CommandContext(ctx, r.name, r.args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", domain.ErrRecognitionFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrRecognitionFailure, r.name, err)
	}

	events := make(chan domain.RecognitionEvent)
	go func() {
		defer close(events)

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			ev, err := parseEvent(scanner.Bytes())
			if err != nil {
				log.Printf("[caption] dropping recognizer line: %v", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log.Printf("[caption] recognizer exited: %v", err)
		}
	}()
	return events, nil
}

func parseEvent(line []byte) (domain.RecognitionEvent, error) {
	var raw struct {
		domain.RecognitionResult
		Results []domain.RecognitionResult `json:"results"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return domain.RecognitionEvent{}, err
	}
	if raw.Results != nil {
		return domain.RecognitionEvent{Results: raw.Results}, nil
	}
	return domain.RecognitionEvent{Results: []domain.RecognitionResult{raw.RecognitionResult}}, nil
}

// LineRecognizer treats every line received on a channel as one finalized
// utterance. It is the recognizer of a participant who types instead of
// speaking. Once the channel is closed every later Start fails.
type LineRecognizer struct {
	lines <-chan string

	mu        sync.Mutex
	exhausted bool
}

func NewLineRecognizer(lines <-chan string) *LineRecognizer {
	return &LineRecognizer{lines: lines}
}

func (r *LineRecognizer) Start(ctx context.Context) (<-chan domain.RecognitionEvent, error) {
	r.mu.Lock()
	exhausted := r.exhausted
	r.mu.Unlock()
	if exhausted {
		return nil, fmt.Errorf("%w: input closed", domain.ErrRecognitionFailure)
	}

	events := make(chan domain.RecognitionEvent)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-r.lines:
				if !ok {
					r.mu.Lock()
					r.exhausted = true
					r.mu.Unlock()
					return
				}
				ev := domain.RecognitionEvent{Results: []domain.RecognitionResult{{Transcript: line, Final: true}}}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
