package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"topearner/internal/amqp"
	"topearner/internal/core"
	"topearner/internal/log"
	"topearner/internal/tasks"
)

// RunEventPublisher receives the outcome of every run.
type RunEventPublisher interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

// RunReport summarises one fetch-compute-submit cycle.
type RunReport struct {
	RunID            uuid.UUID
	TaskID           string
	ReferenceYear    int
	TransactionCount int
	InYearCount      int
	TopEarner        core.EmployeeKey
	Result           []string
	SubmitResponse   string
	Duration         time.Duration
}

// TaskRunner fetches a task, computes the previous year's top earner and
// submits that employee's qualifying transaction ids.
type TaskRunner struct {
	source tasks.TaskSource
	sink   tasks.ResultSink
	events RunEventPublisher
	logger *log.Logger
}

// NewTaskRunner creates a runner. events may be nil.
func NewTaskRunner(source tasks.TaskSource, sink tasks.ResultSink, events RunEventPublisher, logger *log.Logger) *TaskRunner {
	if logger == nil {
		logger = log.Discard()
	}
	return &TaskRunner{
		source: source,
		sink:   sink,
		events: events,
		logger: logger.WithComponent(log.ComponentRunner),
	}
}

// Run performs one cycle with the reference year taken as the UTC year before
// now. A failed fetch, an absent result or a failed submit ends the run with
// an error; nothing is retried here.
func (r *TaskRunner) Run(ctx context.Context, now time.Time) (RunReport, error) {
	if r.source == nil || r.sink == nil {
		return RunReport{}, fmt.Errorf("runner not properly initialized")
	}

	start := time.Now()
	report := RunReport{
		RunID:         uuid.New(),
		ReferenceYear: core.PreviousYear(now),
	}
	logger := r.logger.With(log.NewFields().WithRun(report.RunID.String(), "").ToSlice()...)

	err := r.run(ctx, logger, &report)
	report.Duration = time.Since(start)

	status := runStatus(err)
	if err != nil {
		fields := log.NewFields().WithError(err)
		fields[log.FieldTaskID] = report.TaskID
		fields[log.FieldStatus] = status
		logger.ErrorContext(ctx, "Run failed", fields.ToSlice()...)
	} else {
		logger.InfoContext(ctx, "Run complete",
			log.FieldTaskID, report.TaskID,
			log.FieldResultCount, len(report.Result),
			log.FieldDuration, report.Duration.Milliseconds())
	}

	r.publish(ctx, logger, report, status, err)
	return report, err
}

func (r *TaskRunner) run(ctx context.Context, logger *log.Logger, report *RunReport) error {
	logger.InfoContext(ctx, "Fetching task", log.FieldOperation, log.OpFetch)
	task, err := r.source.FetchTask(ctx)
	if err != nil {
		return fmt.Errorf("fetch task: %w", err)
	}
	report.TaskID = task.ID
	report.TransactionCount = len(task.Transactions)

	agg := NewTopEarnerAggregator(report.ReferenceYear)
	for _, tx := range task.Transactions {
		agg.Add(tx)
	}
	report.InYearCount = agg.Counted()

	logger.InfoContext(ctx, "Computed top earner",
		log.FieldOperation, log.OpCompute,
		log.FieldTaskID, task.ID,
		log.FieldReferenceYear, report.ReferenceYear,
		log.FieldTransactions, report.TransactionCount,
		log.FieldInYear, report.InYearCount)

	top, ok := agg.Result()
	if !ok {
		return fmt.Errorf("%w in %d", core.ErrNoResult, report.ReferenceYear)
	}
	report.TopEarner = top.Employee
	report.Result = top.TransactionIDs

	logger.DebugContext(ctx, "Top earner",
		log.FieldEmployeeID, top.Employee.String(),
		log.FieldTotal, top.Total.String(),
		log.FieldResultCount, len(top.TransactionIDs))

	if task.ID == "" {
		return fmt.Errorf("submit result: %w", core.ErrEmptyTaskID)
	}

	resp, err := r.sink.SubmitResult(ctx, core.Submission{ID: task.ID, Result: top.TransactionIDs})
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	report.SubmitResponse = resp

	logger.InfoContext(ctx, "Submitted result",
		log.FieldOperation, log.OpSubmit,
		log.FieldTaskID, task.ID,
		log.FieldResponse, resp)
	return nil
}

func (r *TaskRunner) publish(ctx context.Context, logger *log.Logger, report RunReport, status string, runErr error) {
	if r.events == nil {
		return
	}
	msg := amqp.NewRunCompletedMessage(report.RunID.String(), report.TaskID, report.ReferenceYear, status, len(report.Result), runErr)
	if err := r.events.PublishRunCompleted(ctx, msg); err != nil {
		logger.WarnContext(ctx, "Failed to publish run event",
			log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return amqp.StatusSucceeded
	case errors.Is(err, core.ErrNoResult):
		return amqp.StatusNoResult
	default:
		return amqp.StatusFailed
	}
}
