package amqp

import (
	"encoding/json"
	"time"
)

// Run statuses carried by RunCompletedMessage
const (
	StatusSucceeded = "succeeded"
	StatusNoResult  = "no_result"
	StatusFailed    = "failed"
)

// RunCompletedMessage reports the outcome of one top-earner run
type RunCompletedMessage struct {
	RunID         string    `json:"run_id"`
	TaskID        string    `json:"task_id,omitempty"`
	ReferenceYear int       `json:"reference_year"`
	Status        string    `json:"status"`
	ResultCount   int       `json:"result_count"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRunCompletedMessage creates a run outcome message stamped with the current time
func NewRunCompletedMessage(runID, taskID string, referenceYear int, status string, resultCount int, runErr error) *RunCompletedMessage {
	msg := &RunCompletedMessage{
		RunID:         runID,
		TaskID:        taskID,
		ReferenceYear: referenceYear,
		Status:        status,
		ResultCount:   resultCount,
		Timestamp:     time.Now(),
	}
	if runErr != nil {
		msg.Error = runErr.Error()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON creates a message from JSON bytes
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
