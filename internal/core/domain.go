package core

import (
	"errors"
	"time"
)

// KindAlpha marks a transaction whose identifier is reported for the top earner.
const KindAlpha Kind = "alpha"

type (
	Kind string

	// EmployeeKey groups transactions by employee. A missing employee id is a
	// key of its own, distinct from every present id including "".
	EmployeeKey struct {
		ID      string
		Present bool
	}

	Transaction struct {
		ID        string
		Employee  EmployeeKey
		Amount    Amount
		Timestamp Timestamp
		Kind      Kind
	}

	// Task is one batch handed out by the task API.
	Task struct {
		ID           string
		Transactions []Transaction
	}

	// Submission is the payload posted back for a task. A nil Result encodes as null.
	Submission struct {
		ID     string   `json:"id"`
		Result []string `json:"result"`
	}
)

var (
	// ErrInvalidInput reports a batch whose structure cannot be traversed,
	// e.g. a transactions field that is not an array.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoResult means no employee had a transaction in the reference year.
	ErrNoResult = errors.New("no top earner")
	ErrEmptyTaskID = errors.New("empty task id")
)

// Employee returns a key for a present employee id.
func Employee(id string) EmployeeKey {
	return EmployeeKey{ID: id, Present: true}
}

// NoEmployee is the key shared by all transactions without an employee id.
var NoEmployee = EmployeeKey{}

func (k EmployeeKey) String() string {
	if !k.Present {
		return "<none>"
	}
	return k.ID
}

// Qualifying reports whether the transaction id of this kind is reported.
func (k Kind) Qualifying() bool {
	return k == KindAlpha
}

// PreviousYear returns the UTC calendar year before now.
func PreviousYear(now time.Time) int {
	return now.UTC().Year() - 1
}
