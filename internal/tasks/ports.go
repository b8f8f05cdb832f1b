package tasks

import (
	"context"

	"topearner/internal/core"
)

// Ports for the task API collaborators.
type (
	// TaskSource hands out the batch to process.
	TaskSource interface {
		FetchTask(ctx context.Context) (core.Task, error)
	}

	// ResultSink accepts the computed result for a task and returns the
	// collaborator's response text.
	ResultSink interface {
		SubmitResult(ctx context.Context, s core.Submission) (response string, err error)
	}
)
