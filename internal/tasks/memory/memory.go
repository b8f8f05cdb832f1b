package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"topearner/internal/core"
)

// Store serves a task from memory or from a JSON file and records every
// submission it receives.
type Store struct {
	mu          sync.Mutex
	path        string
	task        core.Task
	submissions []core.Submission
}

func New(task core.Task) *Store {
	return &Store{task: task}
}

// NewFromFile returns a store that re-reads path on every fetch, so an
// updated file is picked up by the next run.
func NewFromFile(path string) *Store {
	return &Store{path: path}
}

// FetchTask implements tasks.TaskSource.
func (s *Store) FetchTask(_ context.Context) (core.Task, error) {
	if s.path == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.task, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return core.Task{}, fmt.Errorf("read task file: %w", err)
	}
	task, err := core.ParseTask(data)
	if err != nil {
		return core.Task{}, fmt.Errorf("parse task file %s: %w", s.path, err)
	}
	return task, nil
}

// SubmitResult stores the submission and returns a synthetic reference. An
// empty result stays empty; only a nil result is recorded as absent.
func (s *Store) SubmitResult(_ context.Context, sub core.Submission) (string, error) {
	if sub.ID == "" {
		return "", core.ErrEmptyTaskID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, core.Submission{
		ID:     sub.ID,
		Result: slices.Clone(sub.Result),
	})
	return fmt.Sprintf("mem:%d", len(s.submissions)), nil
}

// Submissions returns the submissions received so far.
func (s *Store) Submissions() []core.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Submission(nil), s.submissions...)
}
