package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"interview_room/native/internal/domain"
)

// ResumeService is the part of Client the Analyzer depends on.
type ResumeService interface {
	AnalyzeResume(ctx context.Context, path, room, jobRole string) (*Analysis, error)
	ReportURL(room string) string
}

var (
	ErrNoResume  = errors.New("please upload a resume PDF first")
	ErrNoJobRole = errors.New("please specify a job role")
)

// Analyzer requests resume analysis at most once per (file name, job role,
// room) until one of them changes. Only one request runs at a time.
type Analyzer struct {
	svc ResumeService

	mu       sync.Mutex
	lastKey  string
	inflight chan struct{}
}

func NewAnalyzer(svc ResumeService) *Analyzer {
	return &Analyzer{svc: svc}
}

func analysisKey(filePath, jobRole, room string) string {
	return filepath.Base(filePath) + "|" + jobRole + "|" + domain.NormalizeRoom(room)
}

// MaybeAnalyze submits the resume when both a file and a job role are
// present and the triple changed since the last success. It returns an
// advisory hint, empty when nothing was done.
func (a *Analyzer) MaybeAnalyze(ctx context.Context, filePath, jobRole, room string) (string, error) {
	hint, _, err := a.analyze(ctx, filePath, jobRole, room)
	return hint, err
}

// analyze reports busy when another request was already running.
func (a *Analyzer) analyze(ctx context.Context, filePath, jobRole, room string) (hint string, busy bool, err error) {
	jobRole = strings.TrimSpace(jobRole)
	if filePath == "" || jobRole == "" {
		return "", false, nil
	}
	key := analysisKey(filePath, jobRole, room)

	a.mu.Lock()
	if a.inflight != nil {
		a.mu.Unlock()
		return "", true, nil
	}
	if key == a.lastKey {
		a.mu.Unlock()
		return "", false, nil
	}
	done := make(chan struct{})
	a.inflight = done
	a.mu.Unlock()

	log.Printf("[api] analyzing %s for role %q in room %q", filepath.Base(filePath), jobRole, room)
	analysis, err := a.svc.AnalyzeResume(ctx, filePath, room, jobRole)

	a.mu.Lock()
	a.inflight = nil
	if err == nil {
		a.lastKey = key
	}
	a.mu.Unlock()
	close(done)

	if err != nil {
		return "", false, fmt.Errorf("analyze resume: %w", err)
	}
	return fmt.Sprintf("Analyzed: %s for role %q", analysis.FileName, jobRole), false, nil
}

// Reset forgets the last analyzed triple so the next call submits again.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.lastKey = ""
	a.mu.Unlock()
}

// wait blocks until no request is running.
func (a *Analyzer) wait(ctx context.Context) error {
	for {
		a.mu.Lock()
		done := a.inflight
		a.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// EnsureReport waits for any running analysis, makes sure the current
// triple has been analyzed, then returns the report URL for room.
func (a *Analyzer) EnsureReport(ctx context.Context, filePath, jobRole, room string) (string, error) {
	if filePath == "" {
		return "", ErrNoResume
	}
	if strings.TrimSpace(jobRole) == "" {
		return "", ErrNoJobRole
	}
	for {
		if err := a.wait(ctx); err != nil {
			return "", fmt.Errorf("wait for analysis: %w", err)
		}
		hint, busy, err := a.analyze(ctx, filePath, jobRole, room)
		if busy {
			continue
		}
		if err != nil {
			log.Printf("[api] %v", err)
		} else if hint != "" {
			log.Printf("[api] %s", hint)
		}
		return a.svc.ReportURL(room), nil
	}
}
