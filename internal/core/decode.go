package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireTransaction mirrors one element of the task API transactions array.
// Field names match case-insensitively, so transactionID and transactionId
// both land in TransactionID.
type wireTransaction struct {
	TransactionID json.RawMessage `json:"transactionID"`
	TimeStamp     Timestamp       `json:"timeStamp"`
	Amount        Amount          `json:"amount"`
	Type          json.RawMessage `json:"type"`
	Employee      json.RawMessage `json:"employee"`
}

// UnmarshalJSON decodes a single record leniently. A record that is not an
// object decodes as the zero transaction, whose invalid timestamp keeps it
// out of every year.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	*t = Transaction{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, _ := scalarString(w.TransactionID)
	kind, _ := scalarString(w.Type)
	t.ID = id
	t.Amount = w.Amount
	t.Timestamp = w.TimeStamp
	t.Kind = Kind(kind)
	t.Employee = employeeKey(w.Employee)
	return nil
}

// UnmarshalJSON rejects a task whose transactions field is missing, null or
// not an array with ErrInvalidInput.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w struct {
		ID           json.RawMessage `json:"id"`
		Transactions json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	raw := bytes.TrimSpace(w.Transactions)
	if len(raw) == 0 || raw[0] != '[' {
		return fmt.Errorf("%w: transactions must be an array", ErrInvalidInput)
	}
	var txs []Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id, _ := scalarString(w.ID)
	t.ID = id
	t.Transactions = txs
	return nil
}

// ParseTask decodes a task API payload.
func ParseTask(data []byte) (Task, error) {
	var task Task
	if err := task.UnmarshalJSON(data); err != nil {
		return Task{}, err
	}
	return task, nil
}

func employeeKey(raw json.RawMessage) EmployeeKey {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return NoEmployee
	}
	var e struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return NoEmployee
	}
	id, ok := scalarString(e.ID)
	if !ok {
		return NoEmployee
	}
	return Employee(id)
}

// scalarString returns strings as-is and numbers or booleans as their JSON
// text. ok is false for null, objects, arrays and missing values.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}
