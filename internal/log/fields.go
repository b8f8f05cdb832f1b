package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldTaskID        = "task_id"
	FieldReferenceYear = "reference_year"
	FieldTransactions  = "transactions"
	FieldInYear        = "in_year_transactions"
	FieldEmployeeID    = "employee_id"
	FieldTotal         = "total_earnings"
	FieldResultCount   = "result_count"
	FieldResponse      = "response"
	FieldDuration      = "duration_ms"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldBackend       = "backend"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentRunner = "runner"
	ComponentTasks  = "tasks"
	ComponentAMQP   = "amqp"
	ComponentConfig = "config"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpCompute  = "compute"
	OpSubmit   = "submit"
	OpPublish  = "publish"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields. The
// component is not part of it; Logger adds that to every record.
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRun adds run and task identifiers
func (f LogFields) WithRun(runID, taskID string) LogFields {
	f[FieldRunID] = runID
	if taskID != "" {
		f[FieldTaskID] = taskID
	}
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
